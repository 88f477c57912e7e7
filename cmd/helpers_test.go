// File: cmd/helpers_test.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fitforge/fitroom-cli/api/schemas"
	"github.com/fitforge/fitroom-cli/internal/config"
	"github.com/fitforge/fitroom-cli/internal/lookbook"
	"github.com/fitforge/fitroom-cli/internal/session"
	"github.com/fitforge/fitroom-cli/internal/storage"
)

// stubGateway returns a distinct generated image per call, no network.
type stubGateway struct {
	mu  sync.Mutex
	seq int
}

func (s *stubGateway) next() (schemas.ImageRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return schemas.EncodeImage([]byte(fmt.Sprintf("generated-%d", s.seq)), "image/png"), nil
}

func (s *stubGateway) CreateModel(context.Context, schemas.ImageRef, string) (schemas.ImageRef, error) {
	return s.next()
}

func (s *stubGateway) ApplyGarment(context.Context, schemas.ImageRef, schemas.ImageRef, schemas.AspectRatio) (schemas.ImageRef, error) {
	return s.next()
}

func (s *stubGateway) ApplyAccessory(context.Context, schemas.ImageRef, schemas.ImageRef, schemas.AspectRatio) (schemas.ImageRef, error) {
	return s.next()
}

func (s *stubGateway) VaryPose(context.Context, schemas.ImageRef, string, schemas.AspectRatio) (schemas.ImageRef, error) {
	return s.next()
}

func (s *stubGateway) ChangeBackground(context.Context, schemas.ImageRef, string, schemas.AspectRatio) (schemas.ImageRef, error) {
	return s.next()
}

func (s *stubGateway) ChangeBackgroundWithImage(context.Context, schemas.ImageRef, schemas.ImageRef, schemas.AspectRatio) (schemas.ImageRef, error) {
	return s.next()
}

func (s *stubGateway) ChangeAspectRatio(context.Context, schemas.ImageRef, schemas.AspectRatio) (schemas.ImageRef, error) {
	return s.next()
}

func (s *stubGateway) EditWithMask(context.Context, schemas.ImageRef, schemas.ImageRef, string, schemas.AspectRatio) (schemas.ImageRef, error) {
	return s.next()
}

var _ schemas.GenerationGateway = (*stubGateway)(nil)

// newStudioTestSession builds a session over a real bolt-backed lookbook in a
// temp dir and a stubbed gateway.
func newStudioTestSession(t *testing.T) *session.Session {
	t.Helper()

	blobs, err := storage.NewBoltStore(filepath.Join(t.TempDir(), "lookbook.db"))
	require.NoError(t, err)
	t.Cleanup(func() { blobs.Close() })

	looks, err := lookbook.New(blobs, zap.NewNop())
	require.NoError(t, err)

	sess, err := session.New(config.NewDefaultConfig(), &stubGateway{}, looks, zap.NewNop())
	require.NoError(t, err)
	return sess
}

// pngFile writes a file starting with the PNG signature so content sniffing
// recognizes it.
func pngFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data := append([]byte("\x89PNG\r\n\x1a\n"), []byte(name)...)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}
