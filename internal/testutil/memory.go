package testutil

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/vaultsync/internal/secret"
)

// Operation names used by Recorder and Faults.
const (
	OpListIdentifiers = "list_identifiers"
	OpVersion         = "version"
	OpFetch           = "fetch"
	OpListByPrefix    = "list_by_prefix"
	OpCreate          = "create"
	OpUpdateValue     = "update_value"
	OpTagVersion      = "tag_version"
)

// Call is one backend call. Target is the prefix for listings, the
// identifier for source reads and the sink name for sink writes.
type Call struct {
	Op     string
	Target string
}

func (c Call) String() string {
	return c.Op + " " + c.Target
}

// Recorder collects backend calls in the order they were made.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(op, target string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Op: op, Target: target})
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Count returns how many calls of op were made, for any target.
func (r *Recorder) Count(op string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset drops all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

// Faults maps (operation, target) pairs to injected errors.
//
// Thread-safety: all methods are safe for concurrent use.
type Faults struct {
	mu   sync.Mutex
	byOp map[string]map[string]error
}

// NewFaults creates an empty fault table.
func NewFaults() *Faults {
	return &Faults{byOp: make(map[string]map[string]error)}
}

// Fail makes op on target return err until Clear is called.
func (f *Faults) Fail(op, target string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.byOp[op] == nil {
		f.byOp[op] = make(map[string]error)
	}
	f.byOp[op][target] = err
}

// Clear removes every injected fault.
func (f *Faults) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byOp = make(map[string]map[string]error)
}

func (f *Faults) check(op, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byOp[op][target]
}

type sourceSecret struct {
	current  int
	payloads map[int]map[string]string
}

// MemorySource is an in-memory versioned source vault.
//
// Versions start at 1 and increase by one on every Put, mirroring KV v2.
type MemorySource struct {
	mu      sync.Mutex
	secrets map[string]map[string]*sourceSecret

	Faults   *Faults
	Recorder *Recorder
}

// NewMemorySource creates an empty source with its own fault table and
// recorder.
func NewMemorySource() *MemorySource {
	return &MemorySource{
		secrets:  make(map[string]map[string]*sourceSecret),
		Faults:   NewFaults(),
		Recorder: NewRecorder(),
	}
}

// Put publishes a new version of identifier and returns it.
func (s *MemorySource) Put(prefix, identifier string, payload map[string]string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec := s.lookup(prefix, identifier)
	sec.current++
	sec.payloads[sec.current] = copyPayload(payload)
	return strconv.Itoa(sec.current)
}

// PutAt publishes payload as an explicit version, for tests that need
// version jumps.
func (s *MemorySource) PutAt(prefix, identifier string, version int, payload map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec := s.lookup(prefix, identifier)
	sec.current = version
	sec.payloads[version] = copyPayload(payload)
}

func (s *MemorySource) lookup(prefix, identifier string) *sourceSecret {
	if s.secrets[prefix] == nil {
		s.secrets[prefix] = make(map[string]*sourceSecret)
	}
	sec := s.secrets[prefix][identifier]
	if sec == nil {
		sec = &sourceSecret{payloads: make(map[int]map[string]string)}
		s.secrets[prefix][identifier] = sec
	}
	return sec
}

// ListIdentifiers returns identifiers under prefix in byte order.
func (s *MemorySource) ListIdentifiers(_ context.Context, prefix string) ([]string, error) {
	s.Recorder.record(OpListIdentifiers, prefix)
	if err := s.Faults.check(OpListIdentifiers, prefix); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.secrets[prefix]))
	for id := range s.secrets[prefix] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Version returns the current version of identifier.
func (s *MemorySource) Version(_ context.Context, prefix, identifier string) (string, error) {
	s.Recorder.record(OpVersion, identifier)
	if err := s.Faults.check(OpVersion, identifier); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.secrets[prefix][identifier]
	if !ok {
		return "", fmt.Errorf("secret %s/%s not found", prefix, identifier)
	}
	return strconv.Itoa(sec.current), nil
}

// FetchValue returns the current value of identifier.
func (s *MemorySource) FetchValue(_ context.Context, prefix, identifier string) (secret.SourceValue, error) {
	s.Recorder.record(OpFetch, identifier)
	if err := s.Faults.check(OpFetch, identifier); err != nil {
		return secret.SourceValue{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.secrets[prefix][identifier]
	if !ok {
		return secret.SourceValue{}, fmt.Errorf("secret %s/%s not found", prefix, identifier)
	}
	return secret.SourceValue{
		Identifier: identifier,
		Version:    strconv.Itoa(sec.current),
		Payload:    copyPayload(sec.payloads[sec.current]),
	}, nil
}

// SinkEntry is the state of one memory sink entry.
//
// ValueSeq and TagSeq are the write sequence numbers of the last value write
// and the last tag write, so tests can assert write ordering.
type SinkEntry struct {
	Name       string
	Handle     string
	Value      string
	VersionTag string
	ValueSeq   int64
	TagSeq     int64
}

// MemorySink is an in-memory sink registry.
type MemorySink struct {
	mu       sync.Mutex
	entries  map[string]*SinkEntry
	byHandle map[string]string
	seq      int64

	Faults   *Faults
	Recorder *Recorder
}

// NewMemorySink creates an empty sink with its own fault table and recorder.
func NewMemorySink() *MemorySink {
	return &MemorySink{
		entries:  make(map[string]*SinkEntry),
		byHandle: make(map[string]string),
		Faults:   NewFaults(),
		Recorder: NewRecorder(),
	}
}

// HandleFor returns the handle the memory sink assigns to name.
func HandleFor(name string) string {
	return "mem:" + name
}

// Seed inserts an entry directly, bypassing faults and the recorder.
func (s *MemorySink) Seed(name, value, versionTag string) secret.SinkRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.put(name, value, versionTag)
	return secret.SinkRecord{Name: e.Name, Handle: e.Handle, SyncedVersion: e.VersionTag}
}

func (s *MemorySink) put(name, value, versionTag string) *SinkEntry {
	s.seq++
	e := &SinkEntry{
		Name:       name,
		Handle:     HandleFor(name),
		Value:      value,
		VersionTag: versionTag,
		ValueSeq:   s.seq,
		TagSeq:     s.seq,
	}
	s.entries[name] = e
	s.byHandle[e.Handle] = name
	return e
}

// Entry returns a copy of the entry stored under name.
func (s *MemorySink) Entry(name string) (SinkEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return SinkEntry{}, false
	}
	return *e, true
}

// Names returns every entry name in byte order.
func (s *MemorySink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for n := range s.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ListByPrefix returns entries whose name starts with "prefix/", sorted by
// name.
func (s *MemorySink) ListByPrefix(_ context.Context, prefix string) ([]secret.SinkRecord, error) {
	s.Recorder.record(OpListByPrefix, prefix)
	if err := s.Faults.check(OpListByPrefix, prefix); err != nil {
		return nil, err
	}
	namePrefix := secret.SinkPrefix(prefix)
	var out []secret.SinkRecord
	for _, name := range s.Names() {
		if !strings.HasPrefix(name, namePrefix) {
			continue
		}
		e, _ := s.Entry(name)
		out = append(out, secret.SinkRecord{Name: e.Name, Handle: e.Handle, SyncedVersion: e.VersionTag})
	}
	return out, nil
}

// Create adds a new entry. Creating an existing name fails.
func (s *MemorySink) Create(_ context.Context, name, value, versionTag string) (secret.SinkRecord, error) {
	s.Recorder.record(OpCreate, name)
	if err := s.Faults.check(OpCreate, name); err != nil {
		return secret.SinkRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[name]; exists {
		return secret.SinkRecord{}, fmt.Errorf("secret %s already exists", name)
	}
	e := s.put(name, value, versionTag)
	return secret.SinkRecord{Name: e.Name, Handle: e.Handle, SyncedVersion: e.VersionTag}, nil
}

// UpdateValue replaces the value of the entry with handle.
func (s *MemorySink) UpdateValue(_ context.Context, handle, value string) error {
	name := s.nameOf(handle)
	s.Recorder.record(OpUpdateValue, name)
	if err := s.Faults.check(OpUpdateValue, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("no sink entry with handle %s", handle)
	}
	s.seq++
	e.Value = value
	e.ValueSeq = s.seq
	return nil
}

// TagVersion replaces the version tag of the entry with handle.
func (s *MemorySink) TagVersion(_ context.Context, handle, versionTag string) error {
	name := s.nameOf(handle)
	s.Recorder.record(OpTagVersion, name)
	if err := s.Faults.check(OpTagVersion, name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("no sink entry with handle %s", handle)
	}
	s.seq++
	e.VersionTag = versionTag
	e.TagSeq = s.seq
	return nil
}

func (s *MemorySink) nameOf(handle string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name, ok := s.byHandle[handle]; ok {
		return name
	}
	return handle
}

func copyPayload(p map[string]string) map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
