// Package storetest holds the behavior suite every store.Backend must pass
// when wrapped by store.TaskStore.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankittk/signoff/internal/store"
)

// Factory returns a fresh, empty backend for one subtest.
type Factory func(t *testing.T) store.Backend

func sampleTask(name string) store.Task {
	return store.Task{
		Name:        name,
		Approver1:   "user1",
		Approver2:   "user2",
		Approver3:   "user3",
		Description: name + " description",
	}
}

func open(t *testing.T, f Factory) *store.TaskStore {
	t.Helper()
	st := store.New(f(t))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// Run exercises the record store contract against backends built by f.
func Run(t *testing.T, f Factory) {
	t.Run("CreateThenGet", func(t *testing.T) {
		st := open(t, f)
		ctx := context.Background()

		require.NoError(t, st.CreateTask(ctx, sampleTask("task1")))
		got, err := st.GetTask(ctx, "task1", "anyone")
		require.NoError(t, err)
		assert.Equal(t, "task1", got.Name)
		assert.Equal(t, "user1", got.Approver1)
		assert.Equal(t, "user2", got.Approver2)
		assert.Equal(t, "user3", got.Approver3)
		assert.Equal(t, "task1 description", got.Description)
		assert.NotNil(t, got.Comments)
		assert.Empty(t, got.Comments)
		assert.Empty(t, got.Recommendation)
		assert.Empty(t, got.DecisionMaker)
	})

	t.Run("CreateResetsMutableFields", func(t *testing.T) {
		st := open(t, f)
		ctx := context.Background()

		in := sampleTask("task1")
		in.Comments = []string{"sneaky:--:user9"}
		in.Recommendation = "approve"
		in.DecisionMaker = "user9"
		require.NoError(t, st.CreateTask(ctx, in))
		got, err := st.GetTask(ctx, "task1", "")
		require.NoError(t, err)
		assert.Empty(t, got.Comments)
		assert.Empty(t, got.Recommendation)
		assert.Empty(t, got.DecisionMaker)
	})

	t.Run("DuplicateCreateLeavesRecord", func(t *testing.T) {
		st := open(t, f)
		ctx := context.Background()

		require.NoError(t, st.CreateTask(ctx, sampleTask("task1")))
		require.NoError(t, st.AddComment(ctx, "task1", "keep me", "user1"))

		dup := sampleTask("task1")
		dup.Approver1 = "intruder"
		dup.Description = "overwritten"
		err := st.CreateTask(ctx, dup)
		require.ErrorIs(t, err, store.ErrAlreadyExists)
		assert.Equal(t, "Task task1 already exists.", err.Error())
		assert.Equal(t, 409, store.StatusCode(err))

		got, err := st.GetTask(ctx, "task1", "")
		require.NoError(t, err)
		assert.Equal(t, "user1", got.Approver1)
		assert.Equal(t, "task1 description", got.Description)
		assert.Equal(t, []string{"keep me:--:user1"}, got.Comments)
	})

	t.Run("EmptyNameRejected", func(t *testing.T) {
		st := open(t, f)
		err := st.CreateTask(context.Background(), sampleTask("  "))
		require.ErrorIs(t, err, store.ErrInvalid)
		assert.Equal(t, 400, store.StatusCode(err))
	})

	t.Run("GetMissing", func(t *testing.T) {
		st := open(t, f)
		_, err := st.GetTask(context.Background(), "nonexistent_task", "user1")
		require.ErrorIs(t, err, store.ErrNotFound)
		assert.Equal(t, "Task nonexistent_task not found.", err.Error())
		assert.Equal(t, 404, store.StatusCode(err))
	})

	t.Run("MutationsOnMissingTask", func(t *testing.T) {
		st := open(t, f)
		ctx := context.Background()
		for name, err := range map[string]error{
			"comment":   st.AddComment(ctx, "ghost", "c", "user1"),
			"recommend": st.AddRecommendation(ctx, "ghost", "r", "user1"),
			"clear":     st.ClearComments(ctx, "ghost", "user1"),
		} {
			assert.ErrorIs(t, err, store.ErrNotFound, name)
		}
	})

	t.Run("NonApproverCannotMutate", func(t *testing.T) {
		st := open(t, f)
		ctx := context.Background()
		require.NoError(t, st.CreateTask(ctx, sampleTask("task1")))
		require.NoError(t, st.AddComment(ctx, "task1", "first", "user2"))
		require.NoError(t, st.AddRecommendation(ctx, "task1", "approve", "user3"))
		before, err := st.GetTask(ctx, "task1", "")
		require.NoError(t, err)

		for _, user := range []string{"user4", "USER1", "", "user1 "} {
			err := st.AddComment(ctx, "task1", "hi", user)
			require.ErrorIs(t, err, store.ErrUnauthorized, "comment by %q", user)
			assert.Equal(t, fmt.Sprintf("User %s is not an approver for task task1.", user), err.Error())
			assert.Equal(t, 401, store.StatusCode(err))
			assert.ErrorIs(t, st.AddRecommendation(ctx, "task1", "reject", user), store.ErrUnauthorized)
			assert.ErrorIs(t, st.ClearComments(ctx, "task1", user), store.ErrUnauthorized)
		}

		after, err := st.GetTask(ctx, "task1", "")
		require.NoError(t, err)
		assert.Equal(t, before, after)
	})

	t.Run("EachApproverCanMutate", func(t *testing.T) {
		st := open(t, f)
		ctx := context.Background()
		require.NoError(t, st.CreateTask(ctx, sampleTask("task1")))

		for _, user := range []string{"user1", "user2", "user3"} {
			require.NoError(t, st.AddComment(ctx, "task1", "from "+user, user))
		}
		got, err := st.GetTask(ctx, "task1", "")
		require.NoError(t, err)
		assert.Equal(t, []string{"from user1:--:user1", "from user2:--:user2", "from user3:--:user3"}, got.Comments)
		assert.Empty(t, got.Recommendation)

		require.NoError(t, st.AddRecommendation(ctx, "task1", "approve", "user2"))
		got2, err := st.GetTask(ctx, "task1", "")
		require.NoError(t, err)
		assert.Equal(t, got.Comments, got2.Comments)
		assert.Equal(t, "approve", got2.Recommendation)
		assert.Equal(t, "user2", got2.DecisionMaker)
		assert.Equal(t, got.Description, got2.Description)
	})

	t.Run("CommentsKeepOrder", func(t *testing.T) {
		st := open(t, f)
		ctx := context.Background()
		require.NoError(t, st.CreateTask(ctx, sampleTask("task1")))

		const n = 25
		want := make([]string, 0, n)
		for i := 0; i < n; i++ {
			text := fmt.Sprintf("comment %02d", i)
			require.NoError(t, st.AddComment(ctx, "task1", text, "user1"))
			want = append(want, text+":--:user1")
		}
		got, err := st.GetTask(ctx, "task1", "")
		require.NoError(t, err)
		assert.Equal(t, want, got.Comments)
	})

	t.Run("ClearCommentsIdempotent", func(t *testing.T) {
		st := open(t, f)
		ctx := context.Background()
		require.NoError(t, st.CreateTask(ctx, sampleTask("task1")))
		require.NoError(t, st.ClearComments(ctx, "task1", "user1"))

		require.NoError(t, st.AddComment(ctx, "task1", "comment1", "user1"))
		require.NoError(t, st.AddComment(ctx, "task1", "comment2", "user3"))
		require.NoError(t, st.AddRecommendation(ctx, "task1", "hold", "user1"))
		require.NoError(t, st.ClearComments(ctx, "task1", "user2"))
		require.NoError(t, st.ClearComments(ctx, "task1", "user2"))

		got, err := st.GetTask(ctx, "task1", "")
		require.NoError(t, err)
		assert.NotNil(t, got.Comments)
		assert.Len(t, got.Comments, 0)
		assert.Equal(t, "hold", got.Recommendation)
	})

	t.Run("RecommendationOverwrites", func(t *testing.T) {
		st := open(t, f)
		ctx := context.Background()
		require.NoError(t, st.CreateTask(ctx, sampleTask("task1")))
		require.NoError(t, st.AddRecommendation(ctx, "task1", "This is a recommendation", "user1"))
		require.NoError(t, st.AddRecommendation(ctx, "task1", "Second thoughts", "user3"))

		got, err := st.GetTask(ctx, "task1", "")
		require.NoError(t, err)
		assert.Equal(t, "Second thoughts", got.Recommendation)
		assert.Equal(t, "user3", got.DecisionMaker)
		assert.Empty(t, got.Comments)
	})

	t.Run("ListReturnsAllSorted", func(t *testing.T) {
		st := open(t, f)
		ctx := context.Background()

		empty, err := st.ListTasks(ctx)
		require.NoError(t, err)
		assert.Empty(t, empty)

		names := []string{"task3", "task1", "alpha", "task2", "Zed"}
		for _, n := range names {
			require.NoError(t, st.CreateTask(ctx, sampleTask(n)))
		}
		tasks, err := st.ListTasks(ctx)
		require.NoError(t, err)
		require.Len(t, tasks, len(names))
		got := make([]string, 0, len(tasks))
		for _, tk := range tasks {
			got = append(got, tk.Name)
			assert.NotNil(t, tk.Comments)
		}
		assert.Equal(t, []string{"Zed", "alpha", "task1", "task2", "task3"}, got)
	})

	t.Run("AwkwardNamesAreDistinct", func(t *testing.T) {
		st := open(t, f)
		ctx := context.Background()
		names := []string{"a b", "a_b", "a/b", "a%2Fb", "..", ".hidden", "ünïcode", "a:b"}
		for _, n := range names {
			require.NoError(t, st.CreateTask(ctx, sampleTask(n)), n)
		}
		for _, n := range names {
			got, err := st.GetTask(ctx, n, "")
			require.NoError(t, err, n)
			assert.Equal(t, n, got.Name)
		}
		tasks, err := st.ListTasks(ctx)
		require.NoError(t, err)
		assert.Len(t, tasks, len(names))
	})

	t.Run("ExampleScenario", func(t *testing.T) {
		st := open(t, f)
		ctx := context.Background()
		require.NoError(t, st.CreateTask(ctx, sampleTask("task1")))
		assert.ErrorIs(t, st.AddComment(ctx, "task1", "hi", "user4"), store.ErrUnauthorized)
		require.NoError(t, st.AddComment(ctx, "task1", "hi", "user1"))
		got, err := st.GetTask(ctx, "task1", "user1")
		require.NoError(t, err)
		assert.Equal(t, []string{"hi:--:user1"}, got.Comments)
	})

	t.Run("ConcurrentCommentsAreNotLost", func(t *testing.T) {
		st := open(t, f)
		ctx := context.Background()
		require.NoError(t, st.CreateTask(ctx, sampleTask("busy")))
		require.NoError(t, st.CreateTask(ctx, sampleTask("other")))

		const workers, each = 4, 5
		var wg sync.WaitGroup
		errs := make(chan error, workers*each*2)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < each; i++ {
					errs <- st.AddComment(ctx, "busy", fmt.Sprintf("w%d-%d", w, i), "user1")
					errs <- st.AddComment(ctx, "other", fmt.Sprintf("w%d-%d", w, i), "user2")
				}
			}(w)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}
		for _, name := range []string{"busy", "other"} {
			got, err := st.GetTask(ctx, name, "")
			require.NoError(t, err)
			assert.Len(t, got.Comments, workers*each, name)
		}
	})

	t.Run("ConcurrentCreateOneWinner", func(t *testing.T) {
		st := open(t, f)
		ctx := context.Background()

		const n = 8
		var wg sync.WaitGroup
		results := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- st.CreateTask(ctx, sampleTask("race"))
			}()
		}
		wg.Wait()
		close(results)
		var ok, dup int
		for err := range results {
			switch {
			case err == nil:
				ok++
			case store.KindOf(err) == store.KindAlreadyExists:
				dup++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, n-1, dup)
	})
}
