package session

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fitforge/fitroom-cli/api/schemas"
	"github.com/fitforge/fitroom-cli/internal/config"
	"github.com/fitforge/fitroom-cli/internal/lookbook"
)

// fakeGateway scripts the generation service. Every successful call returns a
// distinct image so tests can tell results apart. When gate channels are set,
// calls block between entered and release, which lets tests hold an operation
// in flight.
type fakeGateway struct {
	mu      sync.Mutex
	calls   []string
	seq     int
	err     error
	entered chan struct{}
	release chan struct{}
}

func (f *fakeGateway) invoke(op string) (schemas.ImageRef, error) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.seq++
	n := f.seq
	err := f.err
	entered, release := f.entered, f.release
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	if err != nil {
		return "", err
	}
	return schemas.EncodeImage([]byte(fmt.Sprintf("generated-%d", n)), "image/png"), nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeGateway) lastCall() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return ""
	}
	return f.calls[len(f.calls)-1]
}

func (f *fakeGateway) CreateModel(_ context.Context, _ schemas.ImageRef, _ string) (schemas.ImageRef, error) {
	return f.invoke("create_model")
}

func (f *fakeGateway) ApplyGarment(_ context.Context, _, _ schemas.ImageRef, _ schemas.AspectRatio) (schemas.ImageRef, error) {
	return f.invoke("apply_garment")
}

func (f *fakeGateway) ApplyAccessory(_ context.Context, _, _ schemas.ImageRef, _ schemas.AspectRatio) (schemas.ImageRef, error) {
	return f.invoke("apply_accessory")
}

func (f *fakeGateway) VaryPose(_ context.Context, _ schemas.ImageRef, _ string, _ schemas.AspectRatio) (schemas.ImageRef, error) {
	return f.invoke("vary_pose")
}

func (f *fakeGateway) ChangeBackground(_ context.Context, _ schemas.ImageRef, _ string, _ schemas.AspectRatio) (schemas.ImageRef, error) {
	return f.invoke("change_background")
}

func (f *fakeGateway) ChangeBackgroundWithImage(_ context.Context, _, _ schemas.ImageRef, _ schemas.AspectRatio) (schemas.ImageRef, error) {
	return f.invoke("change_background_image")
}

func (f *fakeGateway) ChangeAspectRatio(_ context.Context, _ schemas.ImageRef, _ schemas.AspectRatio) (schemas.ImageRef, error) {
	return f.invoke("change_aspect_ratio")
}

func (f *fakeGateway) EditWithMask(_ context.Context, _, _ schemas.ImageRef, _ string, _ schemas.AspectRatio) (schemas.ImageRef, error) {
	return f.invoke("edit_with_mask")
}

var _ schemas.GenerationGateway = (*fakeGateway)(nil)

// memBlobs is an in-memory BlobStore backing the test lookbook.
type memBlobs struct {
	data map[string]string
}

func (m *memBlobs) Get(key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memBlobs) Put(key, value string) error {
	m.data[key] = value
	return nil
}

func (m *memBlobs) Close() error { return nil }

func newTestSession(t *testing.T) (*Session, *fakeGateway) {
	t.Helper()
	gw := &fakeGateway{}
	looks, err := lookbook.New(&memBlobs{data: make(map[string]string)}, zap.NewNop())
	require.NoError(t, err)
	s, err := New(config.NewDefaultConfig(), gw, looks, zap.NewNop())
	require.NoError(t, err)
	return s, gw
}

// startedSession returns a session with a model photo already generated.
func startedSession(t *testing.T) (*Session, *fakeGateway) {
	t.Helper()
	s, gw := newTestSession(t)
	require.NoError(t, s.StartFromPhoto(context.Background(), userPhoto(), ""))
	return s, gw
}

func userPhoto() schemas.ImageRef {
	return schemas.EncodeImage([]byte("user-photo"), "image/jpeg")
}

func garment(id string) schemas.Garment {
	return schemas.Garment{
		ID:       id,
		Name:     id,
		Category: schemas.CategoryGarment,
		Image:    schemas.EncodeImage([]byte(id), "image/png"),
	}
}

func display(t *testing.T, s *Session) schemas.ImageRef {
	t.Helper()
	ref, ok := s.DisplayImage()
	require.True(t, ok)
	return ref
}
