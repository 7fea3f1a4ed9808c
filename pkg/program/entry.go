// Package program holds the meeting program model: the canonical key
// enum, the ordered entry sequence, and the renderer that turns a
// sequence into output nodes.
package program

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/wardtools/wardprogram/pkg/sanitize"
)

// Key identifies one kind of program item. Everything that survives
// sanitization carries one of these, so renderer dispatch is an
// exhaustive switch instead of a string lookup.
type Key int

const (
	KeyUnknown Key = iota
	KeyUnitName
	KeyUnitAddress
	KeyLink
	KeyDate
	KeyPresiding
	KeyConducting
	KeyMusicDirector
	KeyMusicOrganist
	KeyHorizontalLine
	KeyOpeningHymn
	KeyOpeningPrayer
	KeySacramentHymn
	KeyIntermediateHymn
	KeyClosingHymn
	KeyClosingPrayer
	KeyHymn
	KeySpeaker
	KeyLeader
	KeyGeneralStatementWithLink
	KeyGeneralStatement
	KeyLinkWithSpace
)

var keyNames = map[Key]string{
	KeyUnitName:                 "unitName",
	KeyUnitAddress:              "unitAddress",
	KeyLink:                     "link",
	KeyDate:                     "date",
	KeyPresiding:                "presiding",
	KeyConducting:               "conducting",
	KeyMusicDirector:            "musicDirector",
	KeyMusicOrganist:            "musicOrganist",
	KeyHorizontalLine:           "horizontalLine",
	KeyOpeningHymn:              "openingHymn",
	KeyOpeningPrayer:            "openingPrayer",
	KeySacramentHymn:            "sacramentHymn",
	KeyIntermediateHymn:         "intermediateHymn",
	KeyClosingHymn:              "closingHymn",
	KeyClosingPrayer:            "closingPrayer",
	KeyHymn:                     "hymn",
	KeySpeaker:                  "speaker",
	KeyLeader:                   "leader",
	KeyGeneralStatementWithLink: "generalStatementWithLink",
	KeyGeneralStatement:         "generalStatement",
	KeyLinkWithSpace:            "linkWithSpace",
}

var keysByName = func() map[string]Key {
	m := make(map[string]Key, len(keyNames))
	for k, n := range keyNames {
		m[n] = k
	}
	return m
}()

// ParseKey maps a canonical key string to its Key. Dynamic numbered
// variants are not understood here; the sanitizer normalizes those
// before this point.
func ParseKey(s string) (Key, bool) {
	k, ok := keysByName[s]
	return k, ok
}

func (k Key) String() string {
	if n, ok := keyNames[k]; ok {
		return n
	}
	return "unknown"
}

func (k Key) MarshalText() ([]byte, error) {
	n, ok := keyNames[k]
	if !ok {
		return nil, fmt.Errorf("cannot marshal unknown program key %d", int(k))
	}
	return []byte(n), nil
}

func (k *Key) UnmarshalText(b []byte) error {
	parsed, ok := keysByName[string(b)]
	if !ok {
		return fmt.Errorf("unknown program key %q", string(b))
	}
	*k = parsed
	return nil
}

// Entry is one semantic program item: a canonical key and a sanitized
// value. Composite value encodings (pipe-delimited sub-fields,
// placeholder tokens) are decoded by the renderer for that key, not
// here.
type Entry struct {
	Key   Key    `json:"key"`
	Value string `json:"value"`
}

// Sequence is an ordered list of entries, order = source row order.
// It is the complete state needed to render a program and the unit
// that gets cached for offline fallback.
type Sequence []Entry

// First returns the value of the first entry with the given key.
func (s Sequence) First(key Key) string {
	for _, e := range s {
		if e.Key == key {
			return e.Value
		}
	}
	return ""
}

// RowsToEntries converts parsed CSV rows into a sanitized sequence.
// The first row is the sheet header and is dropped. Rows keep their
// first two columns (extra columns are ignored) and go through the
// sanitizer; rejected rows are skipped. Surviving values get the
// tilde-to-comma post-process: literal commas are awkward to type in
// a spreadsheet cell, so authors write ~ instead.
func RowsToEntries(rows [][]string) Sequence {
	var seq Sequence
	for i, row := range rows {
		if i == 0 || len(row) == 0 {
			continue
		}
		rawKey := row[0]
		rawValue := ""
		if len(row) > 1 {
			rawValue = row[1]
		}

		keyName, value, ok := sanitize.Entry(rawKey, rawValue)
		if !ok {
			continue
		}
		key, ok := ParseKey(keyName)
		if !ok {
			continue
		}

		seq = append(seq, Entry{Key: key, Value: strings.ReplaceAll(value, "~", ",")})
	}
	return seq
}

// DecodeSequence restores a cached sequence from its JSON payload.
// The cache may have been written by an older build, so decoding is
// tolerant: malformed items and unknown keys are skipped instead of
// failing the whole restore.
func DecodeSequence(payload string) Sequence {
	var seq Sequence
	gjson.Parse(payload).ForEach(func(_, item gjson.Result) bool {
		key, ok := ParseKey(item.Get("key").String())
		if !ok {
			return true
		}
		seq = append(seq, Entry{Key: key, Value: item.Get("value").String()})
		return true
	})
	return seq
}
