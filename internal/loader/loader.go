// Package loader orchestrates program loading: source resolution,
// fetch with timeout, cache fallback and the offline signal.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/wardtools/wardprogram/internal/utils"
	"github.com/wardtools/wardprogram/pkg/program"
	"github.com/wardtools/wardprogram/pkg/sanitize"
	"github.com/wardtools/wardprogram/pkg/sheet"
	"github.com/wardtools/wardprogram/pkg/storage"
)

// Status is the loader state machine position.
type Status int

const (
	StatusNoSource Status = iota
	StatusLoading
	StatusLoaded
	StatusLoadedFromCache
	StatusLoadFailedNoCache
)

func (s Status) String() string {
	switch s {
	case StatusNoSource:
		return "noSource"
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusLoadedFromCache:
		return "loadedFromCache"
	case StatusLoadFailedNoCache:
		return "loadFailedNoCache"
	}
	return "unknown"
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// User-visible messages.
const (
	NoProgramMessage = "Unable to load program and no cached version is available."
	NoSourceMessage  = "Scan a program QR code to begin."
)

// Fetcher downloads the CSV export for a sheet URL. *sheet.Client
// satisfies it; tests substitute their own.
type Fetcher interface {
	FetchCSV(ctx context.Context, sheetURL string) (string, error)
}

// TitleFetcher is implemented by fetchers that can resolve the
// spreadsheet's own title. Used as the profile display-name fallback
// when the sheet has no unitName row.
type TitleFetcher interface {
	FetchTitle(ctx context.Context, sheetURL string) (string, error)
}

// SessionState is the complete outcome of one load: what got
// rendered, from where, and whether it is stale.
type SessionState struct {
	Status     Status
	SourceURL  string
	Profile    *storage.Profile
	Sequence   program.Sequence
	Nodes      []program.Node
	Offline    bool
	Message    string
	RenderedAt time.Time
}

// Loader owns the session state. Loads may overlap (rapid reloads,
// profile switches); a generation counter makes sure only the newest
// load commits its result.
type Loader struct {
	mu    sync.Mutex
	gen   uint64
	state SessionState

	db    *storage.DB
	fetch Fetcher
}

func New(db *storage.DB, fetch Fetcher) *Loader {
	return &Loader{db: db, fetch: fetch, state: SessionState{Status: StatusNoSource, Message: NoSourceMessage}}
}

// State returns the last committed session state.
func (l *Loader) State() SessionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// NetworkRestored clears the offline indicator. It does not refetch;
// that only happens on explicit reload or profile switch.
func (l *Loader) NetworkRestored() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.Offline = false
}

// SwitchProfile selects a profile and reloads from its URL.
func (l *Loader) SwitchProfile(ctx context.Context, id string) SessionState {
	if err := l.db.SelectProfile(ctx, id); err != nil && !errors.Is(err, storage.ErrUnavailable) {
		utils.Log.Warnf("Could not select profile %s: %v", id, err)
	}
	return l.Load(ctx, "")
}

// Load resolves a source URL (explicit parameter > selected profile >
// legacy single stored URL), fetches and renders it, and falls back
// to the cached render on failure. The returned state is also
// committed as the loader's session state unless a newer load
// finished first.
func (l *Loader) Load(ctx context.Context, explicitURL string) SessionState {
	gen := l.begin()

	sourceURL, prof, legacyUsed := l.resolveSource(ctx, explicitURL)
	if sourceURL == "" {
		return l.commit(gen, SessionState{Status: StatusNoSource, Message: NoSourceMessage})
	}

	text, err := l.fetch.FetchCSV(ctx, sourceURL)
	if err != nil {
		utils.Log.Warnf("Failed to fetch sheet %s: %v", sourceURL, err)
		if legacyUsed {
			// A broken legacy URL must not be retried on every load.
			l.clearLegacy(ctx)
		}
		return l.commit(gen, l.fallback(ctx, sourceURL, prof))
	}

	rows := sheet.ParseCSV(text)
	seq := program.RowsToEntries(rows)
	nodes := program.Render(seq)

	if payload, merr := json.Marshal(seq); merr == nil {
		if serr := l.db.SaveRender(ctx, sourceURL, string(payload)); serr != nil && !errors.Is(serr, storage.ErrUnavailable) {
			utils.Log.Warnf("Could not cache render for %s: %v", sourceURL, serr)
		}
	}

	unitName, stakeName := sheetMeta(rows, seq)
	if unitName == "" {
		unitName = l.sheetTitle(ctx, sourceURL)
	}
	if p, uerr := l.db.UpsertProfile(ctx, sourceURL, unitName, stakeName); uerr == nil && p != nil {
		prof = p
	} else if uerr != nil && !errors.Is(uerr, storage.ErrUnavailable) {
		utils.Log.Warnf("Could not update profile for %s: %v", sourceURL, uerr)
	}
	if legacyUsed {
		// Migration complete: the legacy URL now lives in a profile.
		l.clearLegacy(ctx)
	}

	return l.commit(gen, SessionState{
		Status:     StatusLoaded,
		SourceURL:  sourceURL,
		Profile:    prof,
		Sequence:   seq,
		Nodes:      nodes,
		RenderedAt: time.Now(),
	})
}

func (l *Loader) begin() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.state.Status = StatusLoading
	return l.gen
}

func (l *Loader) commit(gen uint64, st SessionState) SessionState {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen == l.gen {
		l.state = st
	}
	return st
}

func (l *Loader) resolveSource(ctx context.Context, explicitURL string) (sourceURL string, prof *storage.Profile, legacyUsed bool) {
	if explicitURL != "" {
		return explicitURL, nil, false
	}

	prof, err := l.db.GetSelected(ctx)
	if err != nil {
		utils.Log.Warnf("Could not read selected profile: %v", err)
	}
	if prof != nil {
		return prof.URL, prof, false
	}

	legacyURL, err := l.db.LegacySheetURL(ctx)
	if err != nil {
		utils.Log.Warnf("Could not read legacy sheet URL: %v", err)
	}
	if legacyURL != "" {
		return legacyURL, nil, true
	}

	return "", nil, false
}

func (l *Loader) clearLegacy(ctx context.Context) {
	if err := l.db.ClearLegacySheetURL(ctx); err != nil && !errors.Is(err, storage.ErrUnavailable) {
		utils.Log.Warnf("Could not clear legacy sheet URL: %v", err)
	}
}

func (l *Loader) fallback(ctx context.Context, sourceURL string, prof *storage.Profile) SessionState {
	cached, err := l.db.LoadRender(ctx, sourceURL)
	if err != nil {
		utils.Log.Warnf("Could not read cached render for %s: %v", sourceURL, err)
	}
	if cached == nil {
		return SessionState{
			Status:    StatusLoadFailedNoCache,
			SourceURL: sourceURL,
			Profile:   prof,
			Message:   NoProgramMessage,
		}
	}

	seq := program.DecodeSequence(cached.Payload)
	return SessionState{
		Status:     StatusLoadedFromCache,
		SourceURL:  sourceURL,
		Profile:    prof,
		Sequence:   seq,
		Nodes:      program.Render(seq),
		Offline:    true,
		RenderedAt: cached.RenderedAt,
	}
}

// sheetTitle resolves the spreadsheet's own title for sheets without a
// unitName row. The title is untrusted input like any cell value.
func (l *Loader) sheetTitle(ctx context.Context, sourceURL string) string {
	tf, ok := l.fetch.(TitleFetcher)
	if !ok {
		return ""
	}
	title, err := tf.FetchTitle(ctx, sourceURL)
	if err != nil {
		utils.Log.Warnf("Could not fetch sheet title for %s: %v", sourceURL, err)
		return ""
	}
	return sanitize.Value(title)
}

// sheetMeta extracts profile display metadata. unitName comes from
// the sanitized sequence; stakeName is not a renderable program key,
// so it is read from the raw rows and sanitized here.
func sheetMeta(rows [][]string, seq program.Sequence) (unitName, stakeName string) {
	unitName = seq.First(program.KeyUnitName)
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		if strings.TrimSpace(row[0]) == "stakeName" {
			stakeName = strings.ReplaceAll(sanitize.Value(row[1]), "~", ",")
			break
		}
	}
	return unitName, stakeName
}
