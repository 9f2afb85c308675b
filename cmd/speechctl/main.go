// Speechctl is a small terminal client for a running speechplan daemon.
//
// Usage:
//
//	speechctl record <clip.wav>     submit an audio file for transcription
//	speechctl chat <text...>        send one text turn
//	speechctl todos                 list stored tasks
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"speechplan/internal/client"
	"speechplan/internal/message"
	"speechplan/internal/poll"
	"speechplan/internal/recorder"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "speechplan base URL")
	maxDuration := flag.Duration("max-duration", 60*time.Second, "hard recording cap")
	pollInterval := flag.Duration("poll-interval", 500*time.Millisecond, "async job poll interval")
	maxRetries := flag.Int("max-retries", 60, "async job poll attempts before giving up")
	flag.Parse()

	_ = godotenv.Load()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := client.New(*server)

	var err error
	switch flag.Arg(0) {
	case "record":
		if flag.NArg() < 2 {
			usage()
			os.Exit(2)
		}
		err = record(ctx, c, flag.Arg(1), *maxDuration, poll.Coordinator{
			Interval:   *pollInterval,
			MaxRetries: *maxRetries,
		})
	case "chat":
		if flag.NArg() < 2 {
			usage()
			os.Exit(2)
		}
		err = chat(ctx, c, strings.Join(flag.Args()[1:], " "))
	case "todos":
		err = todos(ctx, c)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: speechctl [flags] record <clip.wav> | chat <text...> | todos")
	flag.PrintDefaults()
}

// record runs the file through the capture state machine and submits the
// finalized clip, polling the job to completion when the gateway answers
// asynchronously.
func record(ctx context.Context, c *client.Client, path string, maxDuration time.Duration, coord poll.Coordinator) error {
	ctl := recorder.New(&fileCapability{path: path}, maxDuration)

	if err := ctl.Start(ctx); err != nil {
		return fmt.Errorf("starting capture: %w", err)
	}

	// The file capability drains quickly; wait for delivery to finish
	// before finalizing so nothing is cut short.
	time.Sleep(50 * time.Millisecond)

	if _, err := ctl.Stop(); err != nil && !errors.Is(err, recorder.ErrNoClip) {
		return fmt.Errorf("stopping capture: %w", err)
	}

	up := &captureUploader{client: c, contentType: contentTypeFor(path)}
	if err := ctl.Upload(ctx, up); err != nil {
		return fmt.Errorf("uploading clip: %w", err)
	}

	resp := up.resp
	if resp.JobID != "" {
		fmt.Printf("job %s pending...\n", resp.JobID)
		job, err := coord.Wait(ctx, func(ctx context.Context) (message.TranscriptionJob, error) {
			return c.Job(ctx, resp.JobID)
		})
		if err != nil {
			return fmt.Errorf("waiting for job: %w", err)
		}
		printTurn(message.SenderUser, job.Transcription)
		if job.Transcription == "" {
			return nil
		}

		// The async flow only transcribes server-side; the transcription
		// still has to go through resolution and execution.
		reply, err := c.Chat(ctx, job.Transcription)
		if err != nil {
			return fmt.Errorf("resolving transcription: %w", err)
		}
		printTurn(message.SenderAssistant, reply)
		return nil
	}

	printTurn(message.SenderUser, resp.Transcription)
	printTurn(message.SenderAssistant, resp.ChatResponse)
	return nil
}

func chat(ctx context.Context, c *client.Client, text string) error {
	printTurn(message.SenderUser, text)
	reply, err := c.Chat(ctx, text)
	if err != nil {
		return err
	}
	printTurn(message.SenderAssistant, reply)
	return nil
}

func todos(ctx context.Context, c *client.Client) error {
	tasks, err := c.Todos(ctx)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return nil
	}
	for _, t := range tasks {
		fmt.Println(string(t))
	}
	return nil
}

func printTurn(sender message.Sender, text string) {
	if text == "" {
		return
	}
	fmt.Printf("[%s] %s\n", sender, text)
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".webm"):
		return "audio/webm"
	case strings.HasSuffix(path, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(path, ".ogg"):
		return "audio/ogg"
	default:
		return "audio/wav"
	}
}

// fileCapability adapts a local audio file to the recorder's capture
// capability, delivering it in fixed-size fragments.
type fileCapability struct {
	path string
}

func (f *fileCapability) Acquire(ctx context.Context) (recorder.Stream, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", recorder.ErrPermissionDenied, f.path)
		}
		return nil, fmt.Errorf("reading %s: %w", f.path, err)
	}

	chunks := make(chan []byte)
	go func() {
		defer close(chunks)
		const fragment = 32 << 10
		for off := 0; off < len(data); off += fragment {
			end := off + fragment
			if end > len(data) {
				end = len(data)
			}
			select {
			case chunks <- data[off:end]:
			case <-ctx.Done():
				return
			}
		}
	}()
	return &fileStream{chunks: chunks}, nil
}

type fileStream struct {
	chunks chan []byte
}

func (s *fileStream) Chunks() <-chan []byte { return s.chunks }
func (s *fileStream) Close() error          { return nil }

// captureUploader submits the clip and keeps the gateway's response so the
// caller can print the transcription or poll the returned job.
type captureUploader struct {
	client      *client.Client
	contentType string
	resp        *client.TranscribeResponse
}

func (u *captureUploader) UploadClip(ctx context.Context, clip []byte) error {
	resp, err := u.client.Transcribe(ctx, clip, u.contentType)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("gateway rejected clip: %s", resp.Error)
	}
	u.resp = resp
	return nil
}
