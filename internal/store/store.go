package store

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

var ErrNotFound = errors.New("call session not found")

// CustomerRecord is the immutable customer snapshot resolved at call
// creation. Field tags follow the Collekto API contract, which doubles as
// the header contract of the mock CSV file.
type CustomerRecord struct {
	DebtorName     string `json:"Debtor_Name"`
	Gender         string `json:"Gender"`
	EMIAmount      string `json:"EMI_Amount"`
	PaymentDueDate string `json:"Payment_Due_Date"`
	Product        string `json:"Product"`
	DPD            string `json:"DPD"`
}

// Empty reports whether the record carries no customer data, the degraded
// mode used when the resolver fails.
func (r CustomerRecord) Empty() bool {
	return r == CustomerRecord{}
}

// CallSession is the per-call record kept for the process lifetime. The
// initiate payload is written once at creation, the metadata once by the
// resolver, after which the gateway only reads.
type CallSession struct {
	CallID      string          `json:"call_id"`
	CreatedAt   time.Time       `json:"created_at"`
	Initiate    json.RawMessage `json:"initiate"`
	Metadata    CustomerRecord  `json:"call_metadata"`
	Disposition string          `json:"disposition"`
}

// Store maps call ids to their sessions. Entries are never evicted; store
// growth over the process lifetime is a documented limitation.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*CallSession
}

func New() *Store {
	return &Store{sessions: make(map[string]*CallSession)}
}

func (s *Store) Create(callID string, initiate json.RawMessage) *CallSession {
	sess := &CallSession{
		CallID:    callID,
		CreatedAt: time.Now().UTC(),
		Initiate:  initiate,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[callID] = sess
	return clone(sess)
}

func (s *Store) Get(callID string) (*CallSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[callID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(sess), nil
}

func (s *Store) SetMetadata(callID string, rec CustomerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[callID]
	if !ok {
		return ErrNotFound
	}
	sess.Metadata = rec
	return nil
}

func (s *Store) SetDisposition(callID, disposition string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[callID]
	if !ok {
		return ErrNotFound
	}
	sess.Disposition = disposition
	return nil
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func clone(sess *CallSession) *CallSession {
	c := *sess
	if sess.Initiate != nil {
		c.Initiate = append(json.RawMessage(nil), sess.Initiate...)
	}
	return &c
}
