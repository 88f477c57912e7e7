package session

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fitforge/fitroom-cli/api/schemas"
	"github.com/fitforge/fitroom-cli/internal/config"
	"github.com/fitforge/fitroom-cli/internal/lookbook"
)

func TestNewValidatesDependencies(t *testing.T) {
	looks, err := lookbook.New(&memBlobs{data: map[string]string{}}, zap.NewNop())
	require.NoError(t, err)

	_, err = New(nil, &fakeGateway{}, looks, zap.NewNop())
	assert.Error(t, err)
	_, err = New(config.NewDefaultConfig(), nil, looks, zap.NewNop())
	assert.Error(t, err)
	_, err = New(config.NewDefaultConfig(), &fakeGateway{}, nil, zap.NewNop())
	assert.Error(t, err)
	_, err = New(config.NewDefaultConfig(), &fakeGateway{}, looks, nil)
	assert.Error(t, err)
}

func TestStartFromPhoto(t *testing.T) {
	s, gw := newTestSession(t)

	_, ok := s.DisplayImage()
	assert.False(t, ok)
	assert.False(t, s.HasModel())

	require.NoError(t, s.StartFromPhoto(context.Background(), userPhoto(), "keep the glasses"))
	assert.Equal(t, 1, gw.callCount())
	assert.Equal(t, "create_model", gw.lastCall())
	assert.True(t, s.HasModel())
	assert.Equal(t, 0, s.CurrentPoseIndex())
	assert.Len(t, s.ActiveLayers(), 1)

	// Starting over wipes history and the undo stack.
	require.NoError(t, s.ApplyGarment(context.Background(), garment("g-a")))
	require.Equal(t, 1, s.UndoDepth())
	require.NoError(t, s.StartFromPhoto(context.Background(), userPhoto(), ""))
	assert.Len(t, s.ActiveLayers(), 1)
	assert.Zero(t, s.UndoDepth())
}

func TestApplyGarment(t *testing.T) {
	ctx := context.Background()

	t.Run("requires a model", func(t *testing.T) {
		s, gw := newTestSession(t)
		assert.ErrorIs(t, s.ApplyGarment(ctx, garment("g-a")), ErrNoModel)
		assert.Zero(t, gw.callCount())
	})

	t.Run("commits a layer and records the garment", func(t *testing.T) {
		s, gw := startedSession(t)
		before := display(t, s)

		require.NoError(t, s.ApplyGarment(ctx, garment("g-a")))
		assert.Equal(t, "apply_garment", gw.lastCall())
		assert.Len(t, s.ActiveLayers(), 2)
		assert.NotEqual(t, before, display(t, s))
		assert.Equal(t, 1, s.UndoDepth())

		ids := make([]string, 0)
		for _, g := range s.Wardrobe() {
			ids = append(ids, g.ID)
		}
		assert.Contains(t, ids, "g-a")
	})

	t.Run("accessories route to the additive operation", func(t *testing.T) {
		s, gw := startedSession(t)
		acc := garment("g-hat")
		acc.Category = schemas.CategoryAccessory
		require.NoError(t, s.ApplyGarment(ctx, acc))
		assert.Equal(t, "apply_accessory", gw.lastCall())
	})

	t.Run("resets the pose index", func(t *testing.T) {
		s, _ := startedSession(t)
		require.NoError(t, s.SelectPose(ctx, 2))
		require.Equal(t, 2, s.CurrentPoseIndex())

		require.NoError(t, s.ApplyGarment(ctx, garment("g-a")))
		assert.Equal(t, 0, s.CurrentPoseIndex())
	})
}

func TestApplyGarmentReapplyCache(t *testing.T) {
	ctx := context.Background()
	s, gw := startedSession(t)

	require.NoError(t, s.ApplyGarment(ctx, garment("g-a")))
	withGarment := display(t, s)
	calls := gw.callCount()

	require.NoError(t, s.RemoveLastLayer())
	assert.NotEqual(t, withGarment, display(t, s))

	// Same garment again: served from the explored layer beyond the cursor.
	require.NoError(t, s.ApplyGarment(ctx, garment("g-a")))
	assert.Equal(t, calls, gw.callCount(), "re-apply must not call the gateway")
	assert.Equal(t, withGarment, display(t, s))
	assert.Equal(t, 0, s.CurrentPoseIndex())
	assert.Equal(t, 1, s.UndoDepth(), "a cache hit is still undoable")
}

func TestApplyGarmentTruncatesExploredFuture(t *testing.T) {
	ctx := context.Background()
	s, gw := startedSession(t)

	require.NoError(t, s.ApplyGarment(ctx, garment("g-a")))
	require.NoError(t, s.RemoveLastLayer())

	// A different garment discards the branch holding g-a.
	require.NoError(t, s.ApplyGarment(ctx, garment("g-b")))
	require.NoError(t, s.RemoveLastLayer())

	calls := gw.callCount()
	require.NoError(t, s.ApplyGarment(ctx, garment("g-a")))
	assert.Equal(t, calls+1, gw.callCount(), "g-a was truncated, so it must be regenerated")
}

func TestSelectPose(t *testing.T) {
	ctx := context.Background()

	t.Run("no-op without a model or on the same index", func(t *testing.T) {
		s, gw := newTestSession(t)
		require.NoError(t, s.SelectPose(ctx, 1))
		assert.Zero(t, gw.callCount())

		s, gw = startedSession(t)
		calls := gw.callCount()
		require.NoError(t, s.SelectPose(ctx, 0))
		assert.Equal(t, calls, gw.callCount())
		assert.Zero(t, s.UndoDepth())
	})

	t.Run("out of range", func(t *testing.T) {
		s, _ := startedSession(t)
		assert.Error(t, s.SelectPose(ctx, 99))
	})

	t.Run("generates a missing pose variant", func(t *testing.T) {
		s, gw := startedSession(t)
		base := display(t, s)

		require.NoError(t, s.SelectPose(ctx, 2))
		assert.Equal(t, "vary_pose", gw.lastCall())
		assert.Equal(t, 2, s.CurrentPoseIndex())
		assert.NotEqual(t, base, display(t, s))
		assert.Len(t, s.AvailablePoseKeys(), 2)
	})

	t.Run("cached pose switches without generating", func(t *testing.T) {
		s, gw := startedSession(t)
		require.NoError(t, s.SelectPose(ctx, 2))
		posed := display(t, s)
		require.NoError(t, s.SelectPose(ctx, 0))

		calls := gw.callCount()
		require.NoError(t, s.SelectPose(ctx, 2))
		assert.Equal(t, calls, gw.callCount())
		assert.Equal(t, posed, display(t, s))
	})

	t.Run("failure reverts the optimistic index", func(t *testing.T) {
		s, gw := startedSession(t)
		gw.err = errors.New("model overloaded")

		err := s.SelectPose(ctx, 2)
		require.Error(t, err)
		assert.Equal(t, 0, s.CurrentPoseIndex())
		assert.Len(t, s.AvailablePoseKeys(), 1)
		assert.Zero(t, s.UndoDepth())
	})
}

func TestAddCustomPose(t *testing.T) {
	ctx := context.Background()

	t.Run("blank text is ignored", func(t *testing.T) {
		s, gw := startedSession(t)
		require.NoError(t, s.AddCustomPose(ctx, "   "))
		assert.Equal(t, 1, gw.callCount())
		assert.Len(t, s.PoseInstructions(), len(config.DefaultPoses()))
	})

	t.Run("appends and selects new text", func(t *testing.T) {
		s, gw := startedSession(t)
		require.NoError(t, s.AddCustomPose(ctx, "sitting on a stool"))
		assert.Equal(t, "vary_pose", gw.lastCall())

		poses := s.PoseInstructions()
		require.Len(t, poses, len(config.DefaultPoses())+1)
		assert.Equal(t, "sitting on a stool", poses[len(poses)-1])
		assert.Equal(t, len(poses)-1, s.CurrentPoseIndex())
	})

	t.Run("existing text behaves like selecting its index", func(t *testing.T) {
		s, gw := startedSession(t)
		require.NoError(t, s.AddCustomPose(ctx, "sitting on a stool"))
		require.NoError(t, s.SelectPose(ctx, 0))

		calls := gw.callCount()
		require.NoError(t, s.AddCustomPose(ctx, "sitting on a stool"))
		assert.Equal(t, calls, gw.callCount(), "the variant is already cached")
		assert.Len(t, s.PoseInstructions(), len(config.DefaultPoses())+1)
	})
}

func TestSceneEdits(t *testing.T) {
	ctx := context.Background()
	mask := schemas.EncodeImage([]byte("mask"), "image/png")

	cases := []struct {
		name string
		call func(s *Session) error
		op   string
	}{
		{"background text", func(s *Session) error { return s.ChangeBackground(ctx, "a beach at dusk") }, "change_background"},
		{"background image", func(s *Session) error { return s.ChangeBackgroundWithImage(ctx, mask) }, "change_background_image"},
		{"masked edit", func(s *Session) error { return s.ApplyMaskedEdit(ctx, mask, "add a scarf") }, "edit_with_mask"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, gw := startedSession(t)
			before := display(t, s)

			require.NoError(t, tc.call(s))
			assert.Equal(t, tc.op, gw.lastCall())
			assert.NotEqual(t, before, display(t, s))
			assert.Len(t, s.ActiveLayers(), 1, "scene edits replace in place, no new layer")

			require.NoError(t, s.Undo())
			assert.Equal(t, before, display(t, s))
		})
	}

	t.Run("requires a model", func(t *testing.T) {
		s, gw := newTestSession(t)
		assert.ErrorIs(t, s.ChangeBackground(ctx, "beach"), ErrNoModel)
		assert.Zero(t, gw.callCount())
	})

	t.Run("other cached poses keep the old scene", func(t *testing.T) {
		s, _ := startedSession(t)
		require.NoError(t, s.SelectPose(ctx, 2))
		posed := display(t, s)
		require.NoError(t, s.SelectPose(ctx, 0))

		require.NoError(t, s.ChangeBackground(ctx, "a beach at dusk"))
		require.NoError(t, s.SelectPose(ctx, 2))
		assert.Equal(t, posed, display(t, s), "pose 2 was not regenerated for the new scene")
	})
}

func TestChangeAspectRatio(t *testing.T) {
	ctx := context.Background()

	t.Run("same ratio is a no-op", func(t *testing.T) {
		s, gw := startedSession(t)
		calls := gw.callCount()
		require.NoError(t, s.ChangeAspectRatio(ctx, s.AspectRatio()))
		assert.Equal(t, calls, gw.callCount())
	})

	t.Run("invalid ratio", func(t *testing.T) {
		s, _ := startedSession(t)
		assert.Error(t, s.ChangeAspectRatio(ctx, "4:3"))
	})

	t.Run("before a model it is just a setting", func(t *testing.T) {
		s, gw := newTestSession(t)
		require.NoError(t, s.ChangeAspectRatio(ctx, schemas.AspectSquare))
		assert.Equal(t, schemas.AspectSquare, s.AspectRatio())
		assert.Zero(t, gw.callCount())
		assert.Zero(t, s.UndoDepth())
	})

	t.Run("recomposes and undo restores image and ratio", func(t *testing.T) {
		s, gw := startedSession(t)
		before := display(t, s)
		prev := s.AspectRatio()

		require.NoError(t, s.ChangeAspectRatio(ctx, schemas.AspectWideScreen))
		assert.Equal(t, "change_aspect_ratio", gw.lastCall())
		assert.Equal(t, schemas.AspectWideScreen, s.AspectRatio())
		assert.NotEqual(t, before, display(t, s))

		require.NoError(t, s.Undo())
		assert.Equal(t, prev, s.AspectRatio())
		assert.Equal(t, before, display(t, s))
	})

	t.Run("failure restores the prior ratio", func(t *testing.T) {
		s, gw := startedSession(t)
		prev := s.AspectRatio()
		gw.err = errors.New("model overloaded")

		require.Error(t, s.ChangeAspectRatio(ctx, schemas.AspectWideScreen))
		assert.Equal(t, prev, s.AspectRatio())
	})
}

func TestRemoveLastLayer(t *testing.T) {
	ctx := context.Background()
	s, _ := startedSession(t)

	t.Run("base layer cannot be removed", func(t *testing.T) {
		assert.Error(t, s.RemoveLastLayer())
	})

	t.Run("steps back and clears undo", func(t *testing.T) {
		require.NoError(t, s.ApplyGarment(ctx, garment("g-a")))
		require.Equal(t, 1, s.UndoDepth())

		require.NoError(t, s.RemoveLastLayer())
		assert.Len(t, s.ActiveLayers(), 1)
		assert.Zero(t, s.UndoDepth())
	})
}

func TestUndo(t *testing.T) {
	ctx := context.Background()

	t.Run("empty stack is a no-op", func(t *testing.T) {
		s, _ := startedSession(t)
		require.NoError(t, s.Undo())
	})

	t.Run("each undo restores the exact prior state", func(t *testing.T) {
		s, _ := startedSession(t)

		type snapshot struct {
			display schemas.ImageRef
			pose    int
			layers  int
		}
		snap := func() snapshot {
			return snapshot{display: display(t, s), pose: s.CurrentPoseIndex(), layers: len(s.ActiveLayers())}
		}

		var snaps []snapshot
		snaps = append(snaps, snap())
		require.NoError(t, s.ApplyGarment(ctx, garment("g-a")))
		snaps = append(snaps, snap())
		require.NoError(t, s.SelectPose(ctx, 2))
		snaps = append(snaps, snap())
		require.NoError(t, s.ChangeBackground(ctx, "a beach at dusk"))
		snaps = append(snaps, snap())
		require.NoError(t, s.ApplyGarment(ctx, garment("g-b")))
		snaps = append(snaps, snap())

		require.Equal(t, 4, s.UndoDepth())
		for i := len(snaps) - 2; i >= 0; i-- {
			require.NoError(t, s.Undo())
			got := snap()
			assert.Equal(t, snaps[i].display, got.display, "undo step to state %d", i)
			assert.Equal(t, snaps[i].pose, got.pose)
			assert.Equal(t, snaps[i].layers, got.layers)
		}
		assert.Zero(t, s.UndoDepth())
	})
}

func TestFailureRollback(t *testing.T) {
	ctx := context.Background()
	s, gw := startedSession(t)
	require.NoError(t, s.ApplyGarment(ctx, garment("g-a")))

	before := display(t, s)
	layers := len(s.ActiveLayers())
	undos := s.UndoDepth()

	gw.err = errors.New("request blocked by safety filters")
	err := s.ApplyGarment(ctx, garment("g-b"))
	require.Error(t, err)

	var ge *schemas.GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, schemas.KindContentPolicy, ge.Kind)

	assert.Equal(t, before, display(t, s), "failed operations leave no trace")
	assert.Len(t, s.ActiveLayers(), layers)
	assert.Equal(t, undos, s.UndoDepth())
	assert.Error(t, s.LastError())
	assert.NotEmpty(t, s.LastErrorMessage())

	// The next successful mutation clears the surfaced error.
	gw.err = nil
	require.NoError(t, s.ApplyGarment(ctx, garment("g-b")))
	assert.NoError(t, s.LastError())
	assert.Empty(t, s.LastErrorMessage())
}

func TestBusyExclusion(t *testing.T) {
	ctx := context.Background()
	s, gw := startedSession(t)

	gw.entered = make(chan struct{})
	gw.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		done <- s.ApplyGarment(ctx, garment("g-a"))
	}()
	<-gw.entered

	assert.True(t, s.Busy())
	calls := gw.callCount()
	undos := s.UndoDepth()

	assert.ErrorIs(t, s.ApplyGarment(ctx, garment("g-b")), ErrBusy)
	assert.ErrorIs(t, s.SelectPose(ctx, 2), ErrBusy)
	assert.ErrorIs(t, s.ChangeBackground(ctx, "beach"), ErrBusy)
	assert.ErrorIs(t, s.Undo(), ErrBusy)
	assert.ErrorIs(t, s.RemoveLastLayer(), ErrBusy)
	_, err := s.SaveLook()
	assert.ErrorIs(t, err, ErrBusy)
	assert.ErrorIs(t, s.Reset(), ErrBusy)

	assert.Equal(t, calls, gw.callCount(), "rejected calls never reach the gateway")
	assert.Equal(t, undos, s.UndoDepth())

	gw.entered = nil
	close(gw.release)
	require.NoError(t, <-done)
	assert.False(t, s.Busy())
	assert.Len(t, s.ActiveLayers(), 2, "the in-flight operation still commits")
}

func TestLookbookRoundTrip(t *testing.T) {
	ctx := context.Background()

	t.Run("save rejects a bare base layer", func(t *testing.T) {
		s, _ := startedSession(t)
		_, err := s.SaveLook()
		assert.ErrorIs(t, err, lookbook.ErrTooFewLayers)
	})

	t.Run("save, mutate, load restores the look", func(t *testing.T) {
		s, _ := startedSession(t)
		require.NoError(t, s.ApplyGarment(ctx, garment("g-a")))
		require.NoError(t, s.SelectPose(ctx, 2))
		savedDisplay := display(t, s)

		saved, err := s.SaveLook()
		require.NoError(t, err)
		require.Len(t, s.Looks(), 1)

		require.NoError(t, s.ApplyGarment(ctx, garment("g-b")))
		require.NoError(t, s.ChangeBackground(ctx, "a beach at dusk"))

		require.NoError(t, s.LoadLook(saved.ID))
		assert.Equal(t, savedDisplay, display(t, s))
		assert.Len(t, s.ActiveLayers(), 2)
		assert.Zero(t, s.UndoDepth(), "loading is destructive for undo")
	})

	t.Run("unknown id", func(t *testing.T) {
		s, _ := startedSession(t)
		assert.ErrorIs(t, s.LoadLook("missing"), lookbook.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s, _ := startedSession(t)
		require.NoError(t, s.ApplyGarment(ctx, garment("g-a")))
		saved, err := s.SaveLook()
		require.NoError(t, err)

		require.NoError(t, s.DeleteLook(saved.ID))
		assert.Empty(t, s.Looks())
		assert.ErrorIs(t, s.DeleteLook(saved.ID), lookbook.ErrNotFound)
	})

	t.Run("loading a custom pose extends the catalog", func(t *testing.T) {
		s, _ := startedSession(t)
		require.NoError(t, s.ApplyGarment(ctx, garment("g-a")))
		require.NoError(t, s.AddCustomPose(ctx, "sitting on a stool"))
		saved, err := s.SaveLook()
		require.NoError(t, err)

		require.NoError(t, s.Reset())
		require.NoError(t, s.StartFromPhoto(ctx, userPhoto(), ""))
		require.NoError(t, s.LoadLook(saved.ID))
		assert.Contains(t, s.PoseInstructions(), "sitting on a stool")
		assert.Equal(t, "sitting on a stool", s.PoseInstructions()[s.CurrentPoseIndex()])
	})
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s, _ := startedSession(t)
	require.NoError(t, s.ApplyGarment(ctx, garment("g-a")))
	require.NoError(t, s.ApplyGarment(ctx, garment("g-b")))

	require.NoError(t, s.Reset())
	assert.False(t, s.HasModel())
	assert.Zero(t, s.UndoDepth())
	assert.Len(t, s.Wardrobe(), 2, "back to the stock wardrobe")
}
