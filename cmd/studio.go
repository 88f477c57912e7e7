// File: cmd/studio.go
package cmd

import (
	"bufio"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fitforge/fitroom-cli/api/schemas"
	"github.com/fitforge/fitroom-cli/internal/generation"
	"github.com/fitforge/fitroom-cli/internal/lookbook"
	"github.com/fitforge/fitroom-cli/internal/observability"
	"github.com/fitforge/fitroom-cli/internal/session"
	"github.com/fitforge/fitroom-cli/internal/storage"
)

// newStudioCmd creates the interactive try-on studio command.
func newStudioCmd() *cobra.Command {
	studioCmd := &cobra.Command{
		Use:   "studio [photo]",
		Short: "Start an interactive virtual try-on session",
		Long: "Starts the interactive studio. With a photo argument the model is\n" +
			"generated immediately; otherwise use the 'start' command inside the\n" +
			"studio. Type 'help' at the prompt for the full command list.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// A signal cancels the in-flight generation and ends the loop.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger := observability.GetLogger()

			components, err := initializeStudioComponents(ctx, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize studio: %w", err)
			}
			defer components.Shutdown()

			repl := &studioREPL{
				session: components.Session,
				out:     cmd.OutOrStdout(),
				timeout: appConfig.Gateway.APITimeout,
				log:     logger,
			}

			if len(args) == 1 {
				repl.dispatch(ctx, "start", []string{args[0]})
			}
			return repl.run(ctx, cmd.InOrStdin())
		},
	}
	return studioCmd
}

// studioComponents holds the initialized session and its storage handle.
type studioComponents struct {
	Blobs   *storage.BoltStore
	Session *session.Session
}

// Shutdown releases the lookbook database.
func (c *studioComponents) Shutdown() {
	if c.Blobs != nil {
		if err := c.Blobs.Close(); err != nil {
			observability.GetLogger().Warn("Error closing lookbook database", zap.Error(err))
		}
	}
}

// initializeStudioComponents handles dependency injection for the studio.
func initializeStudioComponents(ctx context.Context, logger *zap.Logger) (*studioComponents, error) {
	components := &studioComponents{}

	blobs, err := storage.NewBoltStore(appConfig.Storage.LookbookPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open lookbook database: %w", err)
	}
	components.Blobs = blobs

	looks, err := lookbook.New(blobs, logger)
	if err != nil {
		components.Shutdown()
		return nil, err
	}

	gateway, err := generation.New(ctx, appConfig.Gateway, logger)
	if err != nil {
		components.Shutdown()
		return nil, err
	}

	sess, err := session.New(appConfig, gateway, looks, logger)
	if err != nil {
		components.Shutdown()
		return nil, err
	}
	components.Session = sess
	return components, nil
}

// studioREPL reads commands line by line and drives the session.
type studioREPL struct {
	session *session.Session
	out     io.Writer
	timeout time.Duration
	log     *zap.Logger
}

func (r *studioREPL) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintln(r.out, "fitroom studio. Type 'help' for commands, 'quit' to leave.")
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(r.out, "> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			break
		}
		r.dispatch(ctx, fields[0], fields[1:])
	}
	fmt.Fprintln(r.out, "Bye.")
	return scanner.Err()
}

// dispatch runs one command, printing a friendly message on failure.
func (r *studioREPL) dispatch(ctx context.Context, name string, args []string) {
	opCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.execute(opCtx, name, args)
	if err == nil {
		return
	}
	if msg := r.session.LastErrorMessage(); msg != "" {
		fmt.Fprintln(r.out, msg)
		return
	}
	fmt.Fprintln(r.out, "Error:", err)
}

func (r *studioREPL) execute(ctx context.Context, name string, args []string) error {
	switch name {
	case "help":
		r.printHelp()
		return nil

	case "start":
		if len(args) < 1 {
			return errors.New("usage: start <photo> [instructions...]")
		}
		ref, err := readImageRef(args[0])
		if err != nil {
			return err
		}
		if err := r.session.StartFromPhoto(ctx, ref, strings.Join(args[1:], " ")); err != nil {
			return err
		}
		fmt.Fprintln(r.out, "Model ready. Use 'wear <image>' to try something on.")
		return nil

	case "wear", "accessorize":
		if len(args) != 1 {
			return fmt.Errorf("usage: %s <image-or-wardrobe-id>", name)
		}
		g, err := r.resolveGarment(args[0], name == "accessorize")
		if err != nil {
			return err
		}
		if err := r.session.ApplyGarment(ctx, g); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Wearing %s (%d layers).\n", g.Name, len(r.session.ActiveLayers()))
		return nil

	case "poses":
		r.printPoses()
		return nil

	case "pose":
		if len(args) != 1 {
			return errors.New("usage: pose <number>")
		}
		idx, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("pose wants a number, got %q", args[0])
		}
		return r.session.SelectPose(ctx, idx-1)

	case "pose-new":
		if len(args) == 0 {
			return errors.New("usage: pose-new <instruction...>")
		}
		return r.session.AddCustomPose(ctx, strings.Join(args, " "))

	case "bg":
		if len(args) == 0 {
			return errors.New("usage: bg <scene description...>")
		}
		return r.session.ChangeBackground(ctx, strings.Join(args, " "))

	case "bg-image":
		if len(args) != 1 {
			return errors.New("usage: bg-image <image>")
		}
		ref, err := readImageRef(args[0])
		if err != nil {
			return err
		}
		return r.session.ChangeBackgroundWithImage(ctx, ref)

	case "edit":
		if len(args) < 2 {
			return errors.New("usage: edit <mask-image> <instruction...>")
		}
		mask, err := readImageRef(args[0])
		if err != nil {
			return err
		}
		return r.session.ApplyMaskedEdit(ctx, mask, strings.Join(args[1:], " "))

	case "ratio":
		if len(args) != 1 {
			return fmt.Errorf("usage: ratio <%s>", joinRatios())
		}
		return r.session.ChangeAspectRatio(ctx, schemas.AspectRatio(args[0]))

	case "undo":
		return r.session.Undo()

	case "remove":
		if err := r.session.RemoveLastLayer(); err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Removed the top layer (%d layers).\n", len(r.session.ActiveLayers()))
		return nil

	case "save":
		saved, err := r.session.SaveLook()
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Saved look %s.\n", saved.ID)
		return nil

	case "looks":
		for _, look := range r.session.Looks() {
			fmt.Fprintf(r.out, "%s  %d layers  pose: %s\n", look.ID, len(look.Layers), look.PoseInstruction)
		}
		return nil

	case "load":
		if len(args) != 1 {
			return errors.New("usage: load <look-id>")
		}
		return r.session.LoadLook(args[0])

	case "delete":
		if len(args) != 1 {
			return errors.New("usage: delete <look-id>")
		}
		return r.session.DeleteLook(args[0])

	case "wardrobe":
		for _, g := range r.session.Wardrobe() {
			fmt.Fprintf(r.out, "%s  %s (%s)\n", g.ID, g.Name, g.Category)
		}
		return nil

	case "export":
		if len(args) != 1 {
			return errors.New("usage: export <output-file>")
		}
		return r.exportDisplay(args[0])

	case "reset":
		return r.session.Reset()

	default:
		return fmt.Errorf("unknown command %q, try 'help'", name)
	}
}

func (r *studioREPL) printHelp() {
	fmt.Fprint(r.out, `Commands:
  start <photo> [instructions]   generate the model from a photo
  wear <image|wardrobe-id>       try on a garment
  accessorize <image|id>         add an accessory on top
  poses                          list pose instructions
  pose <n>                       switch to pose n
  pose-new <instruction>         add and try a custom pose
  bg <description>               change the background scene
  bg-image <image>               place the model into a scene image
  edit <mask> <instruction>      edit the masked region only
  ratio <`+joinRatios()+`>  recompose to an aspect ratio
  undo                           undo the last edit
  remove                         take the top garment off
  save / looks / load / delete   manage the lookbook
  wardrobe                       list collected garments
  export <file>                  write the current image to disk
  reset                          start over
  quit                           leave the studio
`)
}

func (r *studioREPL) printPoses() {
	current := r.session.CurrentPoseIndex()
	cached := make(map[string]bool)
	for _, k := range r.session.AvailablePoseKeys() {
		cached[k] = true
	}
	for i, pose := range r.session.PoseInstructions() {
		marker := " "
		if i == current {
			marker = "*"
		}
		state := ""
		if cached[pose] {
			state = " (generated)"
		}
		fmt.Fprintf(r.out, "%s %2d. %s%s\n", marker, i+1, pose, state)
	}
}

// resolveGarment treats the argument as a wardrobe id first, then as a path.
func (r *studioREPL) resolveGarment(arg string, accessory bool) (schemas.Garment, error) {
	for _, g := range r.session.Wardrobe() {
		if g.ID == arg {
			return g, nil
		}
	}

	ref, err := readImageRef(arg)
	if err != nil {
		return schemas.Garment{}, err
	}
	category := schemas.CategoryGarment
	if accessory {
		category = schemas.CategoryAccessory
	}
	// A content-derived id keeps re-applying the same file a cache hit.
	sum := sha256.Sum256([]byte(ref))
	return schemas.Garment{
		ID:       fmt.Sprintf("file-%x", sum[:8]),
		Name:     filepath.Base(arg),
		Category: category,
		Image:    ref,
	}, nil
}

func (r *studioREPL) exportDisplay(path string) error {
	ref, ok := r.session.DisplayImage()
	if !ok {
		return errors.New("nothing to export yet")
	}
	data, _, err := ref.Decode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write image: %w", err)
	}
	fmt.Fprintf(r.out, "Wrote %s (%d bytes).\n", path, len(data))
	return nil
}

// readImageRef loads a local image file into a data-URL ref.
func readImageRef(path string) (schemas.ImageRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image %q: %w", path, err)
	}
	mimeType := http.DetectContentType(data)
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("%q does not look like an image (%s)", path, mimeType)
	}
	return schemas.EncodeImage(data, mimeType), nil
}

func joinRatios() string {
	parts := make([]string, 0)
	for _, ratio := range schemas.AspectRatios() {
		parts = append(parts, string(ratio))
	}
	return strings.Join(parts, "|")
}
