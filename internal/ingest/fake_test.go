package ingest

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tradewatch/internal/model"
	"github.com/sells-group/tradewatch/internal/runlog"
)

// memStore is an in-memory Store with the same replace semantics as PGStore.
type memStore struct {
	mu        sync.Mutex
	docs      map[string]*model.SourceDocument
	trades    map[int64][]model.Trade
	officials map[string]*model.Official
	nextID    int64

	getErr  error
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{
		docs:      make(map[string]*model.SourceDocument),
		trades:    make(map[int64][]model.Trade),
		officials: make(map[string]*model.Official),
	}
}

func (s *memStore) GetDocument(_ context.Context, source, externalID string) (*model.SourceDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	d, ok := s.docs[source+"/"+externalID]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (s *memStore) upsert(doc *model.SourceDocument) *model.SourceDocument {
	key := doc.Source + "/" + doc.ExternalID
	cur, ok := s.docs[key]
	if !ok {
		s.nextID++
		cp := *doc
		cp.ID = s.nextID
		s.docs[key] = &cp
		return &cp
	}
	return cur
}

func (s *memStore) SaveParsed(_ context.Context, doc *model.SourceDocument, trades []model.Trade) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return 0, s.saveErr
	}
	cur := s.upsert(doc)
	id := cur.ID
	*cur = *doc
	cur.ID = id
	cur.Status = model.DocumentParsed
	cur.ErrorMessage = ""
	doc.ID = id

	replaced := make([]model.Trade, len(trades))
	for i, t := range trades {
		t.DocumentID = id
		replaced[i] = t
	}
	s.trades[id] = replaced
	return len(trades), nil
}

func (s *memStore) SaveError(_ context.Context, doc *model.SourceDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.upsert(doc)
	cur.Status = model.DocumentError
	cur.ErrorMessage = doc.ErrorMessage
	return nil
}

func (s *memStore) UnlinkedFilers(context.Context) ([]FilerRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[FilerRef]bool)
	var refs []FilerRef
	for _, d := range s.docs {
		for _, t := range s.trades[d.ID] {
			ref := FilerRef{FilerName: d.FilerName, Office: d.Office}
			if t.OfficialID == nil && d.FilerName != "" && !seen[ref] {
				seen[ref] = true
				refs = append(refs, ref)
			}
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].FilerName < refs[j].FilerName })
	return refs, nil
}

func (s *memStore) UpsertOfficial(_ context.Context, o *model.Official) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.Name == "" {
		return 0, eris.New("empty name")
	}
	key := o.Name + "/" + o.Chamber
	if cur, ok := s.officials[key]; ok {
		o.ID = cur.ID
		return cur.ID, nil
	}
	o.ID = int64(len(s.officials) + 1)
	cp := *o
	s.officials[key] = &cp
	return o.ID, nil
}

func (s *memStore) LinkTrades(_ context.Context, officialID int64, filerNames []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, d := range s.docs {
		if !slices.Contains(filerNames, d.FilerName) {
			continue
		}
		for i := range s.trades[d.ID] {
			if s.trades[d.ID][i].OfficialID == nil {
				id := officialID
				s.trades[d.ID][i].OfficialID = &id
				n++
			}
		}
	}
	return n, nil
}

func (s *memStore) doc(externalID string) *model.SourceDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[model.SourceHouseClerk+"/"+externalID]
}

func (s *memStore) tradesFor(externalID string) []model.Trade {
	d := s.doc(externalID)
	if d == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trades[d.ID]
}

func (s *memStore) tradeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, ts := range s.trades {
		n += len(ts)
	}
	return n
}

// memRuns records run bookkeeping calls.
type memRuns struct {
	mu        sync.Mutex
	started   []string
	completed []runlog.Result
	failed    []string
}

func (r *memRuns) Start(_ context.Context, kind string) (runlog.Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, kind)
	return runlog.Run{ID: int64(len(r.started))}, nil
}

func (r *memRuns) Complete(_ context.Context, _ int64, result runlog.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, result)
	return nil
}

func (r *memRuns) Fail(_ context.Context, _ int64, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, msg)
	return nil
}
