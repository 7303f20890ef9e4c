package stage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Lllllllleong/erpdocumentflow/internal/models"
	"github.com/Lllllllleong/erpdocumentflow/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuckets() Buckets {
	return Buckets{
		Inbound:    "json-in",
		Ready:      "zip-in",
		Processing: "processing",
		Succeeded:  "succeeded",
		Failed:     "failed",
	}
}

func TestJobTag_RoundTrip(t *testing.T) {
	cases := []struct{ name, jobID string }{
		{"invoices.zip", "12345"},
		{"dir/sub/invoices.zip", "abc-def"},
		{"name_with_ERPJOB_lookalike.zip", "9"},
		{"a", "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tagged, err := DeriveJobTaggedName(tc.name, tc.jobID)
			require.NoError(t, err)
			assert.Equal(t, tc.name+"_ERPJOBID_"+tc.jobID, tagged)

			tag, err := ParseJobTaggedName(tagged)
			require.NoError(t, err)
			assert.Equal(t, JobTag{Name: tc.name, JobID: tc.jobID}, tag)
		})
	}
}

func TestDeriveJobTaggedName_Rejects(t *testing.T) {
	cases := map[string][2]string{
		"empty name":       {"", "1"},
		"empty job id":     {"a.zip", ""},
		"marker in name":   {"a_ERPJOBID_1.zip", "2"},
		"marker in job id": {"a.zip", "1_ERPJOBID_2"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DeriveJobTaggedName(tc[0], tc[1])
			assert.Error(t, err)
		})
	}
}

func TestParseJobTaggedName_Rejects(t *testing.T) {
	_, err := ParseJobTaggedName("invoices.zip")
	assert.ErrorIs(t, err, ErrNotJobTagged)

	_, err = ParseJobTaggedName("a_ERPJOBID_1_ERPJOBID_2")
	assert.ErrorIs(t, err, ErrAmbiguousJobTag)

	_, err = ParseJobTaggedName("invoices.zip_ERPJOBID_")
	assert.Error(t, err)

	_, err = ParseJobTaggedName("_ERPJOBID_42")
	assert.Error(t, err)
}

func TestBuckets(t *testing.T) {
	b := Buckets{Ready: "zip-in", Processing: "processing"}

	bucket, err := b.Bucket(Ready)
	require.NoError(t, err)
	assert.Equal(t, "zip-in", bucket)

	_, err = b.Bucket(Succeeded)
	assert.Error(t, err)
	_, err = b.Bucket(Location(42))
	assert.Error(t, err)

	assert.Equal(t, []Location{Ready, Processing}, b.Configured())
	assert.Equal(t, Succeeded, Terminal(true))
	assert.Equal(t, Failed, Terminal(false))
	assert.True(t, Failed.Terminal())
	assert.False(t, Processing.Terminal())
	assert.Equal(t, "processing", Processing.String())
}

func newTestRouter(store storage.Store, opts ...RouterOption) *Router {
	opts = append([]RouterOption{WithPollInterval(time.Millisecond)}, opts...)
	return NewRouter(store, testBuckets(), opts...)
}

func TestRelocate_MovesObject(t *testing.T) {
	store := storage.NewMemoryStore()
	store.PendingPolls = 3
	store.Seed("zip-in", "a.zip", []byte("zip"))
	router := newTestRouter(store)

	result, err := router.Relocate(context.Background(), Ready, "a.zip", Processing, "a.zip_ERPJOBID_7")
	require.NoError(t, err)
	assert.False(t, result.Warning())
	assert.Equal(t, storage.ObjectRef{Bucket: "processing", Name: "a.zip_ERPJOBID_7"}, result.Destination)

	data, ok := store.Object("processing", "a.zip_ERPJOBID_7")
	require.True(t, ok)
	assert.Equal(t, "zip", string(data))
	_, ok = store.Object("zip-in", "a.zip")
	assert.False(t, ok)
	assert.Equal(t, 4, store.Calls("status"))
}

func TestRelocate_DeleteFailureIsWarning(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Seed("processing", "a.zip_ERPJOBID_7", []byte("zip"))
	store.FailOn("delete", errors.New("permission denied"))
	router := newTestRouter(store)

	result, err := router.Relocate(context.Background(), Processing, "a.zip_ERPJOBID_7", Succeeded, "a.zip_ERPJOBID_7")
	require.NoError(t, err)
	require.True(t, result.Warning())
	kind, ok := models.KindOf(result.DeleteErr)
	require.True(t, ok)
	assert.Equal(t, models.KindStorage, kind)

	_, ok = store.Object("succeeded", "a.zip_ERPJOBID_7")
	assert.True(t, ok)
	_, ok = store.Object("processing", "a.zip_ERPJOBID_7")
	assert.True(t, ok, "source stays when delete fails")
}

func TestRelocate_CopyFailureIsFatal(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Seed("processing", "a", []byte("zip"))
	store.CopyErr = errors.New("backend exploded")
	router := newTestRouter(store)

	_, err := router.Relocate(context.Background(), Processing, "a", Failed, "a")
	require.Error(t, err)
	kind, _ := models.KindOf(err)
	assert.Equal(t, models.KindStorage, kind)
	assert.Zero(t, store.Calls("delete"))
	_, ok := store.Object("processing", "a")
	assert.True(t, ok)
}

func TestRelocate_MissingSource(t *testing.T) {
	store := storage.NewMemoryStore()
	router := newTestRouter(store)

	_, err := router.Relocate(context.Background(), Processing, "ghost", Failed, "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Zero(t, store.Calls("status"))
}

func TestRelocate_Timeout(t *testing.T) {
	store := storage.NewMemoryStore()
	store.PendingPolls = 1 << 30
	store.Seed("zip-in", "a.zip", []byte("zip"))
	router := newTestRouter(store, WithCopyTimeout(20*time.Millisecond))

	_, err := router.Relocate(context.Background(), Ready, "a.zip", Processing, "a.zip_ERPJOBID_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCopyTimeout)
	assert.Zero(t, store.Calls("delete"))
	assert.Equal(t, 1, store.Calls("abandon"))
	assert.Zero(t, store.PendingCopies(), "timed out copy is released")
}

func TestRelocate_Cancelled(t *testing.T) {
	store := storage.NewMemoryStore()
	store.PendingPolls = 1 << 30
	store.Seed("zip-in", "a.zip", []byte("zip"))
	router := newTestRouter(store)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := router.Relocate(ctx, Ready, "a.zip", Processing, "a.zip_ERPJOBID_1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, store.PendingCopies(), "cancelled copy is released")
}

func TestRelocate_UnconfiguredLocation(t *testing.T) {
	store := storage.NewMemoryStore()
	router := NewRouter(store, Buckets{Processing: "processing"})

	_, err := router.Relocate(context.Background(), Processing, "a", Succeeded, "a")
	kind, _ := models.KindOf(err)
	assert.Equal(t, models.KindConfiguration, kind)
	assert.Zero(t, store.TotalCalls())
}

func TestDeposit_CreateIfAbsent(t *testing.T) {
	store := storage.NewMemoryStore()
	router := newTestRouter(store)
	ctx := context.Background()

	created, err := router.Deposit(ctx, Ready, "a.zip", []byte("one"))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = router.Deposit(ctx, Ready, "a.zip", []byte("two"))
	require.NoError(t, err)
	assert.False(t, created)

	data, err := router.Read(ctx, Ready, "a.zip")
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestRead_NotFound(t *testing.T) {
	router := newTestRouter(storage.NewMemoryStore())
	_, err := router.Read(context.Background(), Inbound, "missing.json")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	kind, _ := models.KindOf(err)
	assert.Equal(t, models.KindStorage, kind)
}

func TestList(t *testing.T) {
	store := storage.NewMemoryStore()
	store.Seed("processing", "b_ERPJOBID_2", nil)
	store.Seed("processing", "a_ERPJOBID_1", nil)
	router := newTestRouter(store)

	objects, err := router.List(context.Background(), Processing, "")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "a_ERPJOBID_1", objects[0].Name)
}
