package lifecycle

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/model"
	"github.com/GoncaloVaranda/field-sync-app-sub000/internal/store"
)

const testToken = model.Token("tok-field-app")

// fakeStore is an in-memory Store with real compare-and-set semantics,
// including the one-open-activity constraint the SQL backends enforce
// with a partial unique index.
type fakeStore struct {
	mu          sync.Mutex
	assignments map[model.AssignmentKey]model.Assignment
	activities  []fakeActivity

	// afterGetActivity, when set, runs after each read outside the lock
	// so a test can interleave a write between a read and its CAS.
	afterGetActivity func()
}

type fakeActivity struct {
	key model.AssignmentKey
	act model.Activity
}

func newFakeStore() *fakeStore {
	return &fakeStore{assignments: make(map[model.AssignmentKey]model.Assignment)}
}

func (f *fakeStore) seed(a model.Assignment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assignments[a.AssignmentKey] = a
}

func (f *fakeStore) CreateWorksheet(context.Context, model.Worksheet) error { return nil }
func (f *fakeStore) GetWorksheet(context.Context, int) (*model.Worksheet, error) {
	return nil, store.ErrNotFound
}
func (f *fakeStore) ListWorksheets(context.Context) ([]model.Worksheet, error) { return nil, nil }
func (f *fakeStore) DeleteWorksheet(context.Context, int) error               { return nil }
func (f *fakeStore) Migrate(context.Context) error                             { return nil }
func (f *fakeStore) Close() error                                              { return nil }

func (f *fakeStore) GetAssignment(_ context.Context, key model.AssignmentKey) (*model.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := a
	out.Activities = nil
	for _, fa := range f.activities {
		if fa.key == key {
			out.Activities = append(out.Activities, fa.act)
		}
	}
	return &out, nil
}

func (f *fakeStore) ListAssignments(_ context.Context, filter store.AssignmentFilter) ([]model.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Assignment
	for _, a := range f.assignments {
		if filter.WorksheetID != 0 && a.WorksheetID != filter.WorksheetID {
			continue
		}
		if filter.OperationCode != "" && a.OperationCode != filter.OperationCode {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *fakeStore) UpdateAssignmentCAS(_ context.Context, key model.AssignmentKey, expect model.Status, updated model.Assignment) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[key]
	if !ok || a.Status != expect {
		return false, nil
	}
	delete(f.assignments, key)
	updated.Activities = nil
	f.assignments[updated.AssignmentKey] = updated
	return true, nil
}

func (f *fakeStore) InsertActivity(_ context.Context, key model.AssignmentKey, act model.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fa := range f.activities {
		if fa.key == key && fa.act.EndDate == "" {
			return store.ErrActivityOpen
		}
	}
	f.activities = append(f.activities, fakeActivity{key: key, act: act})
	return nil
}

func (f *fakeStore) GetActivity(_ context.Context, id string) (*model.Activity, model.AssignmentKey, error) {
	f.mu.Lock()
	var found *fakeActivity
	for i := range f.activities {
		if f.activities[i].act.ID == id {
			found = &f.activities[i]
			break
		}
	}
	var act model.Activity
	var key model.AssignmentKey
	if found != nil {
		act = found.act
		key = found.key
	}
	f.mu.Unlock()

	if f.afterGetActivity != nil {
		f.afterGetActivity()
	}
	if found == nil {
		return nil, model.AssignmentKey{}, store.ErrNotFound
	}
	return &act, key, nil
}

func (f *fakeStore) UpdateActivityCAS(_ context.Context, updated model.Activity, expect model.Activity) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, fa := range f.activities {
		if fa.act.ID == updated.ID {
			if fa.act.EndDate != expect.EndDate ||
				fa.act.Notes != expect.Notes ||
				fa.act.GPSTrack != expect.GPSTrack ||
				!slices.Equal(fa.act.Photos, expect.Photos) {
				return false, nil
			}
			f.activities[i].act = updated
			return true, nil
		}
	}
	return false, nil
}

func testMachine(f *fakeStore) *Machine {
	m := NewMachine(f)
	base := time.Date(2025, 7, 30, 17, 41, 8, 4430037, time.UTC)
	n := 0
	m.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return m
}

func seededKey() model.AssignmentKey {
	k := testKey()
	k.Operator = ""
	return k
}

func TestAssign(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: seededKey(), Status: model.StatusUnassigned})
	m := testMachine(f)

	a, err := m.Assign(context.Background(), testToken, seededKey(), "op-ana")
	require.NoError(t, err)
	assert.Equal(t, model.StatusAssigned, a.Status)
	assert.Equal(t, "op-ana", a.Operator)
}

func TestAssign_RequiresToken(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: seededKey(), Status: model.StatusUnassigned})
	m := testMachine(f)

	_, err := m.Assign(context.Background(), "", seededKey(), "op-ana")
	assert.ErrorIs(t, err, ErrTokenRequired)
}

func TestAssign_RequiresOperator(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: seededKey(), Status: model.StatusUnassigned})
	m := testMachine(f)

	_, err := m.Assign(context.Background(), testToken, seededKey(), "")
	assert.Error(t, err)
}

func TestAssign_AlreadyAssigned(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: seededKey(), Status: model.StatusUnassigned})
	m := testMachine(f)

	_, err := m.Assign(context.Background(), testToken, seededKey(), "op-ana")
	require.NoError(t, err)

	// The seed row moved to op-ana's key; the loser is told who holds it.
	_, err = m.Assign(context.Background(), testToken, seededKey(), "op-bruno")
	var aerr *AlreadyAssignedError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, "op-ana", aerr.Key.Operator)
	assert.Equal(t, model.StatusAssigned, aerr.Current)
}

func TestAssign_UnknownAssignment(t *testing.T) {
	f := newFakeStore()
	m := testMachine(f)

	_, err := m.Assign(context.Background(), testToken, seededKey(), "op-ana")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAssign_NotUnassigned(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: testKey(), Status: model.StatusAssigned})
	m := testMachine(f)

	_, err := m.Assign(context.Background(), testToken, testKey(), "op-bruno")
	var aerr *AlreadyAssignedError
	assert.ErrorAs(t, err, &aerr)
}

func TestStartActivity(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: testKey(), Status: model.StatusAssigned})
	m := testMachine(f)

	a, err := m.StartActivity(context.Background(), testToken, testKey(), "2025-07-30 08:00:00")
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, a.Status)
	require.Len(t, a.Activities, 1)
	assert.Len(t, a.Activities[0].ID, 19)
	assert.Equal(t, "2025-07-30 08:00:00", a.Activities[0].StartDate)
	assert.False(t, a.Activities[0].Ended())
}

func TestStartActivity_DefaultsStartToNow(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: testKey(), Status: model.StatusAssigned})
	m := testMachine(f)

	a, err := m.StartActivity(context.Background(), testToken, testKey(), "")
	require.NoError(t, err)
	require.Len(t, a.Activities, 1)
	assert.NotEmpty(t, a.Activities[0].StartDate)
}

func TestStartActivity_Unassigned(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: seededKey(), Status: model.StatusUnassigned})
	m := testMachine(f)

	_, err := m.StartActivity(context.Background(), testToken, seededKey(), "")
	var serr *InvalidStateError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, model.StatusUnassigned, serr.Current)
}

func TestStartActivity_OpenActivityBlocks(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: testKey(), Status: model.StatusAssigned})
	m := testMachine(f)

	a, err := m.StartActivity(context.Background(), testToken, testKey(), "")
	require.NoError(t, err)
	openID := a.Activities[0].ID

	_, err = m.StartActivity(context.Background(), testToken, testKey(), "")
	var oerr *ActivityOpenError
	require.ErrorAs(t, err, &oerr)
	assert.Equal(t, openID, oerr.ActivityID)
}

func TestEndActivity(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: testKey(), Status: model.StatusAssigned})
	m := testMachine(f)

	a, err := m.StartActivity(context.Background(), testToken, testKey(), "2025-07-30 08:00:00")
	require.NoError(t, err)
	id := a.Activities[0].ID

	a, err = m.EndActivity(context.Background(), testToken, testKey(), id,
		"2025-07-30 17:00:00", "cleared north edge", "track-1", []string{"p1.jpg"}, false)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, a.Status)

	act := a.FindActivity(id)
	require.NotNil(t, act)
	assert.True(t, act.Ended())
	assert.Equal(t, "cleared north edge", act.Notes)
	assert.Equal(t, []string{"p1.jpg"}, act.Photos)
}

func TestEndActivity_ThenStartAnother(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: testKey(), Status: model.StatusAssigned})
	m := testMachine(f)

	a, err := m.StartActivity(context.Background(), testToken, testKey(), "")
	require.NoError(t, err)
	id := a.Activities[0].ID

	_, err = m.EndActivity(context.Background(), testToken, testKey(), id,
		"2025-07-30 17:00:00", "", "", nil, false)
	require.NoError(t, err)

	a, err = m.StartActivity(context.Background(), testToken, testKey(), "")
	require.NoError(t, err)
	assert.Len(t, a.Activities, 2)
}

func TestEndActivity_Twice(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: testKey(), Status: model.StatusAssigned})
	m := testMachine(f)

	a, err := m.StartActivity(context.Background(), testToken, testKey(), "")
	require.NoError(t, err)
	id := a.Activities[0].ID

	_, err = m.EndActivity(context.Background(), testToken, testKey(), id,
		"2025-07-30 17:00:00", "", "", nil, false)
	require.NoError(t, err)

	_, err = m.EndActivity(context.Background(), testToken, testKey(), id,
		"2025-07-30 18:00:00", "", "", nil, false)
	var eerr *AlreadyEndedError
	require.ErrorAs(t, err, &eerr)
	assert.Equal(t, id, eerr.ActivityID)
}

func TestEndActivity_UnknownID(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: testKey(), Status: model.StatusInProgress})
	m := testMachine(f)

	_, err := m.EndActivity(context.Background(), testToken, testKey(), "1753899000000000099",
		"2025-07-30 17:00:00", "", "", nil, false)
	var nerr *ActivityNotFoundError
	assert.ErrorAs(t, err, &nerr)
}

func TestEndActivity_RejectsPlaceholderTimestamp(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: testKey(), Status: model.StatusAssigned})
	m := testMachine(f)

	a, err := m.StartActivity(context.Background(), testToken, testKey(), "")
	require.NoError(t, err)

	_, err = m.EndActivity(context.Background(), testToken, testKey(), a.Activities[0].ID,
		"0000-00-00", "", "", nil, false)
	assert.Error(t, err)
}

func TestEndActivity_FinalCompletesAssignment(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: testKey(), Status: model.StatusAssigned})
	m := testMachine(f)

	a, err := m.StartActivity(context.Background(), testToken, testKey(), "")
	require.NoError(t, err)
	id := a.Activities[0].ID

	a, err = m.EndActivity(context.Background(), testToken, testKey(), id,
		"2025-07-30 17:00:00", "", "", nil, true)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, a.Status)
	assert.Equal(t, "2025-07-30 17:00:00", a.EndDate)

	// Completed assignments accept no further activities.
	_, err = m.StartActivity(context.Background(), testToken, testKey(), "")
	var serr *InvalidStateError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, model.StatusCompleted, serr.Current)
}

func TestAddActivityInfo(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: testKey(), Status: model.StatusAssigned})
	m := testMachine(f)

	a, err := m.StartActivity(context.Background(), testToken, testKey(), "")
	require.NoError(t, err)
	id := a.Activities[0].ID

	_, err = m.EndActivity(context.Background(), testToken, testKey(), id,
		"2025-07-30 17:00:00", "first pass", "", []string{"p1.jpg"}, false)
	require.NoError(t, err)

	act, err := m.AddActivityInfo(context.Background(), testToken, id, "second pass", "track-2", []string{"p2.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "first pass\nsecond pass", act.Notes)
	assert.Equal(t, "track-2", act.GPSTrack)
	assert.Equal(t, []string{"p1.jpg", "p2.jpg"}, act.Photos)

	// End timestamp is untouched by enrichment.
	assert.Equal(t, "2025-07-30 17:00:00", act.EndDate)
}

func TestAddActivityInfo_ConcurrentAppend(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: testKey(), Status: model.StatusAssigned})
	m := testMachine(f)

	a, err := m.StartActivity(context.Background(), testToken, testKey(), "")
	require.NoError(t, err)
	id := a.Activities[0].ID

	_, err = m.EndActivity(context.Background(), testToken, testKey(), id,
		"2025-07-30 17:00:00", "", "", nil, false)
	require.NoError(t, err)

	// Between this call's read and its compare-and-set, another append
	// lands. The first write must miss and retry, keeping both.
	raced := false
	f.afterGetActivity = func() {
		if raced {
			return
		}
		raced = true
		act, _, err := f.GetActivity(context.Background(), id)
		require.NoError(t, err)
		updated := *act
		updated.Notes = "first append"
		ok, err := f.UpdateActivityCAS(context.Background(), updated, *act)
		require.NoError(t, err)
		require.True(t, ok)
	}

	act, err := m.AddActivityInfo(context.Background(), testToken, id, "second append", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "first append\nsecond append", act.Notes)
}

func TestAddActivityInfo_OpenActivity(t *testing.T) {
	f := newFakeStore()
	f.seed(model.Assignment{AssignmentKey: testKey(), Status: model.StatusAssigned})
	m := testMachine(f)

	a, err := m.StartActivity(context.Background(), testToken, testKey(), "")
	require.NoError(t, err)

	_, err = m.AddActivityInfo(context.Background(), testToken, a.Activities[0].ID, "too early", "", nil)
	var nerr *ActivityNotEndedError
	assert.ErrorAs(t, err, &nerr)
}

func TestAddActivityInfo_UnknownID(t *testing.T) {
	f := newFakeStore()
	m := testMachine(f)

	_, err := m.AddActivityInfo(context.Background(), testToken, "1753899000000000099", "x", "", nil)
	var nerr *ActivityNotFoundError
	assert.ErrorAs(t, err, &nerr)
}

func TestAddActivityInfo_InvalidID(t *testing.T) {
	f := newFakeStore()
	m := testMachine(f)

	_, err := m.AddActivityInfo(context.Background(), testToken, "not-an-id", "x", "", nil)
	assert.Error(t, err)
}
