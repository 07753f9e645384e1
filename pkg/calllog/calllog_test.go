package calllog

import (
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbehnke/p25-nexus/internal/testhelpers"
	"github.com/dbehnke/p25-nexus/pkg/bits"
	"github.com/dbehnke/p25-nexus/pkg/database"
	"github.com/dbehnke/p25-nexus/pkg/edac"
	"github.com/dbehnke/p25-nexus/pkg/logger"
	"github.com/dbehnke/p25-nexus/pkg/p25"
)

const nac = 0x293

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type memStore struct {
	mu    sync.Mutex
	calls []database.CallRecord
	err   error
}

func (s *memStore) Create(c *database.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, *c)
	return nil
}

func newTracker(store Store) *Tracker {
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	return NewTracker(store, DefaultMinDuration, log)
}

func event(channel string, at time.Duration, frame *bits.BitField) p25.Event {
	return p25.Event{
		Channel: channel,
		Time:    t0.Add(at),
		Message: p25.NewMessage(frame, edac.Pass()),
	}
}

func groupLDU1(options p25.ServiceOptions, group, source int) *bits.BitField {
	return testhelpers.LDU1(nac, testhelpers.GroupVoiceLinkControl(options, group, source))
}

func ldu2(alg p25.Algorithm) *bits.BitField {
	return testhelpers.LDU2(nac, bits.New(72), alg, 0)
}

func TestTracker_CallClosedByTerminator(t *testing.T) {
	store := &memStore{}
	tr := newTracker(store)

	tr.Observe(event("vc1", 0, groupLDU1(0, 1001, 7654321)))
	tr.Observe(event("vc1", 180*time.Millisecond, ldu2(p25.AlgorithmUnencrypted)))
	tr.Observe(event("vc1", 360*time.Millisecond, groupLDU1(0, 1001, 7654321)))
	tr.Observe(event("vc1", 540*time.Millisecond, ldu2(p25.AlgorithmAES256)))
	assert.Equal(t, 1, tr.GetActiveCallCount())

	active := tr.ActiveCalls()
	require.Len(t, active, 1)
	assert.Equal(t, 1001, active[0].Talkgroup)
	assert.Equal(t, 4, active[0].FrameCount)
	assert.True(t, active[0].Encrypted)

	tr.Observe(event("vc1", 720*time.Millisecond,
		testhelpers.TDULC(nac, testhelpers.LinkControl(p25.LCCallTermination))))
	assert.Equal(t, 0, tr.GetActiveCallCount())

	require.Len(t, store.calls, 1)
	c := store.calls[0]
	assert.Equal(t, "vc1", c.Channel)
	assert.Equal(t, "293", c.NAC)
	assert.Equal(t, 1001, c.Talkgroup)
	assert.Equal(t, 7654321, c.Source)
	assert.True(t, c.Encrypted)
	assert.False(t, c.Emergency)
	assert.Equal(t, 4, c.FrameCount)
	assert.InDelta(t, 0.72, c.Duration, 1e-9)
	assert.Equal(t, ReasonTerminator, c.Reason)
}

func TestTracker_ShortCallSkipped(t *testing.T) {
	store := &memStore{}
	tr := newTracker(store)

	tr.Observe(event("vc1", 0, groupLDU1(0, 1001, 42)))
	tr.Observe(event("vc1", 200*time.Millisecond, testhelpers.NewFrame(nac, p25.TerminatorDataUnit)))

	assert.Equal(t, 0, tr.GetActiveCallCount())
	assert.Empty(t, store.calls)
}

func TestTracker_NewSourceSupersedesCall(t *testing.T) {
	store := &memStore{}
	tr := newTracker(store)

	tr.Observe(event("vc1", 0, groupLDU1(0, 1001, 42)))
	tr.Observe(event("vc1", time.Second, groupLDU1(0x80, 1001, 43)))

	require.Len(t, store.calls, 1)
	assert.Equal(t, 42, store.calls[0].Source)
	assert.Equal(t, ReasonSuperseded, store.calls[0].Reason)

	active := tr.ActiveCalls()
	require.Len(t, active, 1)
	assert.Equal(t, 43, active[0].Source)
	assert.True(t, active[0].Emergency)
}

func TestTracker_ChannelsAreIndependent(t *testing.T) {
	tr := newTracker(nil)

	tr.Observe(event("vc2", 0, groupLDU1(0, 2, 20)))
	tr.Observe(event("vc1", 0, groupLDU1(0, 1, 10)))
	tr.Observe(event("vc1", time.Second, testhelpers.NewFrame(nac, p25.TerminatorDataUnit)))

	active := tr.ActiveCalls()
	require.Len(t, active, 1)
	assert.Equal(t, "vc2", active[0].Channel)
}

func TestTracker_FramesWithoutCallIgnored(t *testing.T) {
	tr := newTracker(&memStore{})

	tr.Observe(event("vc1", 0, ldu2(p25.AlgorithmUnencrypted)))
	tr.Observe(event("vc1", 0, testhelpers.NewFrame(nac, p25.TerminatorDataUnit)))
	tr.Observe(event("vc1", 0, testhelpers.TSBK(nac, 0, 0, 0)))

	assert.Equal(t, 0, tr.GetActiveCallCount())
}

func TestTracker_HDUOpensCall(t *testing.T) {
	tr := newTracker(nil)

	payload := testhelpers.HDUPayload(bits.New(72), p25.VendorStandard, p25.AlgorithmAES256, 0x1234, 1001)
	tr.Observe(event("vc1", 0, testhelpers.HDU(nac, payload)))

	active := tr.ActiveCalls()
	require.Len(t, active, 1)
	assert.Equal(t, 1001, active[0].Talkgroup)
	assert.True(t, active[0].Encrypted)
	assert.Equal(t, 0, active[0].Source)

	// first LDU1 fills in the source without splitting the call
	tr.Observe(event("vc1", 180*time.Millisecond, groupLDU1(0, 1001, 42)))
	active = tr.ActiveCalls()
	require.Len(t, active, 1)
	assert.Equal(t, 42, active[0].Source)
	assert.Equal(t, 2, active[0].FrameCount)
}

func TestTracker_CleanupStaleCalls(t *testing.T) {
	store := &memStore{}
	tr := newTracker(store)
	tr.now = func() time.Time { return t0.Add(10 * time.Second) }

	tr.Observe(event("vc1", 0, groupLDU1(0, 1, 10)))
	tr.Observe(event("vc1", 2*time.Second, groupLDU1(0, 1, 10)))
	tr.Observe(event("vc2", 9*time.Second, groupLDU1(0, 2, 20)))

	assert.Equal(t, 1, tr.CleanupStaleCalls(5*time.Second))
	assert.Equal(t, 1, tr.GetActiveCallCount())
	require.Len(t, store.calls, 1)
	assert.Equal(t, ReasonTimeout, store.calls[0].Reason)
	assert.Equal(t, t0.Add(2*time.Second), store.calls[0].EndTime)
}

func TestTracker_StoreErrorDropsCall(t *testing.T) {
	store := &memStore{err: errors.New("disk full")}
	tr := newTracker(store)

	tr.Observe(event("vc1", 0, groupLDU1(0, 1, 10)))
	tr.Observe(event("vc1", time.Second, testhelpers.NewFrame(nac, p25.TerminatorDataUnit)))

	assert.Equal(t, 0, tr.GetActiveCallCount())
	assert.Empty(t, store.calls)
}

func TestTracker_WithDatabase(t *testing.T) {
	log := logger.New(logger.Config{Level: "error", Output: io.Discard})
	db, err := database.NewDB(database.Config{Path: filepath.Join(t.TempDir(), "calls.db")}, log)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	repo := database.NewCallRepository(db.GetDB())
	tr := NewTracker(repo, DefaultMinDuration, log)

	tr.Observe(event("vc1", 0, groupLDU1(0, 1001, 42)))
	tr.Observe(event("vc1", 2*time.Second, testhelpers.NewFrame(nac, p25.TerminatorDataUnit)))

	calls, err := repo.GetByTalkgroup(1001, 10)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, 42, calls[0].Source)
	assert.InDelta(t, 2.0, calls[0].Duration, 1e-9)
}
