package inference

import (
	"container/list"
	"sync"

	"github.com/google/uuid"

	"reactsql-mimic/internal/agent"
	contextpkg "reactsql-mimic/internal/context"
	"reactsql-mimic/internal/risk"
)

// QueryRecord is the per-request trace the data model section names:
// enough of the pipeline's intermediate state to answer a follow-up
// question or to explain a result after the fact.
type QueryRecord struct {
	QID      string
	Question string
	Draft    agent.SQLDraft
	Final    string
	Risk     risk.Info
	Context  contextpkg.CandidateContext
	Mode     string // "demo" | "agent" | "expert"
}

// RecordStore is an LRU-evicted, QID-keyed store of QueryRecords: a
// bounded in-memory cache (least-recently-used entry evicted first)
// sized for a single process rather than a shared cluster cache.
type RecordStore struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[string]*list.Element
}

type recordEntry struct {
	qid    string
	record QueryRecord
}

// NewRecordStore creates a RecordStore holding at most capacity records;
// capacity <= 0 is normalized to 1000.
func NewRecordStore(capacity int) *RecordStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RecordStore{capacity: capacity, order: list.New(), items: make(map[string]*list.Element)}
}

// Put assigns a fresh QID to rec, stores it, and evicts the oldest record
// if the store is over capacity. Returns the assigned QID.
func (s *RecordStore) Put(rec QueryRecord) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	qid := uuid.NewString()
	rec.QID = qid
	elem := s.order.PushFront(&recordEntry{qid: qid, record: rec})
	s.items[qid] = elem

	for s.order.Len() > s.capacity {
		oldest := s.order.Back()
		if oldest == nil {
			break
		}
		s.order.Remove(oldest)
		delete(s.items, oldest.Value.(*recordEntry).qid)
	}
	return qid
}

// Get returns the record stored under qid, promoting it to most-recently
// used, and whether it was found.
func (s *RecordStore) Get(qid string) (QueryRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[qid]
	if !ok {
		return QueryRecord{}, false
	}
	s.order.MoveToFront(elem)
	return elem.Value.(*recordEntry).record, true
}
