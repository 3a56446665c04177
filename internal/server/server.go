package server

import (
	"fmt"
	"log/slog"
	"time"

	napv1 "github.com/nupi-ai/nupi/api/nap/v1"

	"github.com/nupi-ai/plugin-tts-multiprovider/internal/adapterinfo"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/audio"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/cache"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/config"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/telemetry"
	"github.com/nupi-ai/plugin-tts-multiprovider/internal/tts"
)

const chunkSize = 4096 // bytes per emitted audio chunk

// Server implements the TextToSpeechService on top of a tts.Dispatcher.
type Server struct {
	napv1.UnimplementedTextToSpeechServiceServer

	cfg        config.Config
	log        *slog.Logger
	dispatcher *tts.Dispatcher
	metrics    *telemetry.Recorder
	cache      *cache.Cache // nil when caching is disabled
}

// New returns a new Server instance.
func New(cfg config.Config, logger *slog.Logger, dispatcher *tts.Dispatcher, metrics *telemetry.Recorder, audioCache *cache.Cache) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if dispatcher == nil {
		panic("server: dispatcher must not be nil")
	}
	if metrics == nil {
		metrics = telemetry.NewRecorder()
	}
	return &Server{
		cfg: cfg,
		log: logger.With(
			"component", "server",
			"provider", cfg.Provider,
		),
		dispatcher: dispatcher,
		metrics:    metrics,
		cache:      audioCache,
	}
}

func (s *Server) request(text string) tts.Request {
	provider, _ := tts.ParseProvider(s.cfg.Provider)
	return tts.Request{
		Provider:       s.cfg.Provider,
		Credential:     s.cfg.Credential(provider),
		Text:           text,
		LocalModelPath: s.cfg.LocalModelPath,
		VoiceID:        s.cfg.VoiceID,
		StreamPCM:      true,
	}
}

// StreamSynthesis accepts a text synthesis request and streams back audio chunks.
func (s *Server) StreamSynthesis(req *napv1.StreamSynthesisRequest, stream napv1.TextToSpeechService_StreamSynthesisServer) error {
	if req == nil {
		return fmt.Errorf("server: request is nil")
	}

	text := req.GetText()
	logEntry := s.log.With(
		"session_id", req.GetSessionId(),
		"stream_id", req.GetStreamId(),
		"text_length", len(text),
	)

	if text == "" {
		logEntry.Warn("empty text in synthesis request")
		return s.sendError(stream, tts.ReasonInvalidRequest, "text is required")
	}

	logEntry.Info("synthesis request received")

	if err := s.sendStatus(stream, napv1.SynthesisStatus_SYNTHESIS_STATUS_STARTED, nil); err != nil {
		logEntry.Error("failed to send started status", "error", err)
		return err
	}

	ttsReq := s.request(text)
	format, _ := s.dispatcher.Format(ttsReq)
	out := newChunkSender(stream, adapterinfo.SynthesisMetadata(s.cfg.Provider, s.cfg.VoiceID, format), format, s.cache != nil)

	var cacheKey string
	if s.cache != nil {
		cacheKey = cache.Key(s.cfg.Provider, s.cfg.VoiceID, text)
		if data, ok := s.cache.Get(cacheKey); ok {
			s.metrics.ObserveCache(true)
			logEntry.Info("cache hit", "key", cacheKey)
			return s.finish(stream, out, text, time.Now(), logEntry, "cache", func() error {
				_, err := out.Write(data)
				return err
			})
		}
		s.metrics.ObserveCache(false)
		logEntry.Debug("cache miss", "key", cacheKey)
	}

	start := time.Now()
	return s.finish(stream, out, text, start, logEntry, "", func() error {
		_, err := s.dispatcher.SynthesizeTo(stream.Context(), ttsReq, out)
		if err == nil && s.cache != nil && len(out.recorded) > 0 {
			if perr := s.cache.Put(cacheKey, out.recorded); perr != nil {
				logEntry.Warn("failed to store in cache", "error", perr)
			}
		}
		return err
	})
}

// finish runs produce, flushes the trailing chunk and reports the terminal
// status. Send failures abort the RPC; synthesis failures are reported to
// the client as ERROR or INTERRUPTED.
func (s *Server) finish(stream napv1.TextToSpeechService_StreamSynthesisServer, out *chunkSender, text string, start time.Time, logEntry *slog.Logger, source string, produce func() error) error {
	err := produce()
	if out.sendErr != nil {
		logEntry.Error("failed to send audio chunk", "error", out.sendErr, "sequence", out.sequence)
		return out.sendErr
	}
	if err != nil {
		if ctxErr := stream.Context().Err(); ctxErr != nil {
			logEntry.Info("synthesis interrupted", "error", ctxErr)
			return s.sendStatus(stream, napv1.SynthesisStatus_SYNTHESIS_STATUS_INTERRUPTED, map[string]string{
				"reason": ctxErr.Error(),
			})
		}
		return s.sendError(stream, tts.ReasonOf(err), err.Error())
	}
	if err := out.Flush(); err != nil {
		logEntry.Error("failed to send final audio chunk", "error", err)
		return err
	}

	metadata := map[string]string{
		"total_bytes":  fmt.Sprintf("%d", out.total),
		"total_chunks": fmt.Sprintf("%d", out.sequence),
		"text_length":  fmt.Sprintf("%d", len(text)),
	}
	if source != "" {
		metadata["source"] = source
		logEntry.Info("served from "+source, "total_bytes", out.total, "chunks", out.sequence)
	} else {
		duration := time.Since(start)
		metadata["duration_sec"] = fmt.Sprintf("%.2f", duration.Seconds())
		logEntry.Info("synthesis completed",
			"total_bytes", out.total,
			"chunks", out.sequence,
			"duration_sec", duration.Seconds(),
		)
	}
	return s.sendStatus(stream, napv1.SynthesisStatus_SYNTHESIS_STATUS_FINISHED, metadata)
}

func (s *Server) sendStatus(stream napv1.TextToSpeechService_StreamSynthesisServer, status napv1.SynthesisStatus, metadata map[string]string) error {
	resp := &napv1.SynthesisResponse{
		Status:   status,
		Metadata: metadata,
	}
	return stream.Send(resp)
}

func (s *Server) sendError(stream napv1.TextToSpeechService_StreamSynthesisServer, reason tts.Reason, message string) error {
	resp := &napv1.SynthesisResponse{
		Status:       napv1.SynthesisStatus_SYNTHESIS_STATUS_ERROR,
		ErrorMessage: message,
		Metadata:     map[string]string{"reason": string(reason)},
	}
	if err := stream.Send(resp); err != nil {
		return err
	}
	return fmt.Errorf("synthesis error: %s", message)
}

// chunkSender turns the byte stream written by a backend into NAP audio
// chunks. It holds back the tail so the final chunk can carry Last.
type chunkSender struct {
	stream   napv1.TextToSpeechService_StreamSynthesisServer
	metadata map[string]string
	format   audio.Format

	pending  []byte
	playing  bool
	sequence uint64
	total    int
	sendErr  error

	record   bool
	recorded []byte
}

func newChunkSender(stream napv1.TextToSpeechService_StreamSynthesisServer, metadata map[string]string, format audio.Format, record bool) *chunkSender {
	return &chunkSender{stream: stream, metadata: metadata, format: format, record: record}
}

func (c *chunkSender) Write(p []byte) (int, error) {
	if c.sendErr != nil {
		return 0, c.sendErr
	}
	if len(p) == 0 {
		return 0, nil
	}
	if !c.playing {
		c.playing = true
		if err := c.send(&napv1.SynthesisResponse{Status: napv1.SynthesisStatus_SYNTHESIS_STATUS_PLAYING}); err != nil {
			return 0, err
		}
	}
	if c.record {
		c.recorded = append(c.recorded, p...)
	}
	c.pending = append(c.pending, p...)
	for len(c.pending) > chunkSize {
		if err := c.sendChunk(c.pending[:chunkSize], false); err != nil {
			return 0, err
		}
		c.pending = append(c.pending[:0], c.pending[chunkSize:]...)
	}
	return len(p), nil
}

// Flush emits the held-back tail as the last chunk.
func (c *chunkSender) Flush() error {
	if c.sendErr != nil {
		return c.sendErr
	}
	if len(c.pending) == 0 {
		return nil
	}
	err := c.sendChunk(c.pending, true)
	c.pending = nil
	return err
}

func (c *chunkSender) sendChunk(data []byte, last bool) error {
	c.sequence++
	c.total += len(data)
	chunk := &napv1.AudioChunk{
		Data:       append([]byte{}, data...),
		Sequence:   c.sequence,
		First:      c.sequence == 1,
		Last:       last,
		DurationMs: uint32(c.format.Duration(len(data)) / time.Millisecond),
		Metadata:   c.metadata,
	}
	return c.send(&napv1.SynthesisResponse{
		Status: napv1.SynthesisStatus_SYNTHESIS_STATUS_PLAYING,
		Chunk:  chunk,
	})
}

func (c *chunkSender) send(resp *napv1.SynthesisResponse) error {
	if err := c.stream.Send(resp); err != nil {
		c.sendErr = err
		return err
	}
	return nil
}
