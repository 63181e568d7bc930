package stage_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"callpipe/internal/ai/mock"
	"callpipe/internal/speech"
	"callpipe/internal/stage"
	"callpipe/internal/storage"
	"callpipe/pkg/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	storage    *fakeStorage
	queue      *fakeQueue
	store      *fakeStore
	transcoder *fakeTranscoder
	speech     *fakeSpeech
	runner     *stage.Runner
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		storage:    newFakeStorage(),
		queue:      &fakeQueue{},
		store:      newFakeStore(),
		transcoder: &fakeTranscoder{},
		speech:     &fakeSpeech{},
	}
	h.runner = stage.NewRunner(stage.Deps{
		Store:           h.store,
		Queue:           h.queue,
		Storage:         h.storage,
		Bucket:          "calls",
		StorageEndpoint: "https://storage.example.net",
		Transcoder:      h.transcoder,
		Speech:          h.speech,
		AI:              mock.NewProvider(),
		PollInterval:    10 * time.Second,
		Language:        "ru-RU",
	})
	return h
}

func newJob(s models.Stage, payload any) *models.Job {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return &models.Job{
		ID:          uuid.New(),
		OrgID:       uuid.New(),
		CallID:      uuid.New(),
		Stage:       s,
		Status:      models.JobStatusProcessing,
		Payload:     raw,
		MaxAttempts: models.DefaultMaxAttempts,
	}
}

func TestExtractAudio_RejectsVideoBeforeAnySideEffect(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageExtractAudio, stage.ExtractAudioPayload{FileName: "call.mp4"})

	err := h.runner.Run(context.Background(), job)
	require.EqualError(t, err, "video uploads must be extracted client-side before upload: call.mp4")

	assert.Empty(t, h.storage.calls)
	assert.Empty(t, h.queue.enqueued)
	assert.Empty(t, h.queue.delayed)
}

func TestExtractAudio_RejectsUnknownFileType(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageExtractAudio, stage.ExtractAudioPayload{FileName: "archive.zip"})

	err := h.runner.Run(context.Background(), job)
	require.EqualError(t, err, "unsupported file type for extract_audio: archive.zip")
	assert.Empty(t, h.storage.calls)
}

func TestExtractAudio_MP3PassThrough(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageExtractAudio, stage.ExtractAudioPayload{
		FileName:     "call.mp3",
		SalesRepName: "Ivan",
		Source:       "upload",
	})
	rawPath := storage.RawPath(job.OrgID, job.CallID, "call.mp3")
	h.storage.put(rawPath, []byte("mp3-bytes"))

	require.NoError(t, h.runner.Run(context.Background(), job))

	audioPath := storage.AudioPath(job.OrgID, job.CallID)
	assert.Contains(t, h.storage.objects, audioPath)
	assert.NotContains(t, h.storage.objects, rawPath, "raw upload should be removed")
	assert.Equal(t, 0, h.transcoder.mp3Calls, "mp3 uploads are not transcoded")

	require.Len(t, h.store.artifacts, 1)
	assert.Equal(t, models.ArtifactKindAudio, h.store.artifacts[0].Kind)
	assert.Equal(t, audioPath, h.store.artifacts[0].StoragePath)
	assert.Equal(t, "audio/mpeg", h.store.artifacts[0].ContentType, "content type inferred from the file name")

	require.Len(t, h.queue.enqueued, 1)
	assert.Equal(t, models.StageTranscribeStart, h.queue.enqueued[0].Stage)

	var next stage.TranscribeStartPayload
	require.NoError(t, payloadOf(h.queue.enqueued[0], &next))
	assert.Equal(t, audioPath, next.AudioObjectPath)
	assert.Equal(t, "Ivan", next.SalesRepName)
}

func TestExtractAudio_MP3PassThroughKeepsDeclaredContentType(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageExtractAudio, stage.ExtractAudioPayload{
		FileName:    "call.mp3",
		ContentType: "audio/mp3",
	})
	h.storage.put(storage.RawPath(job.OrgID, job.CallID, "call.mp3"), []byte("mp3-bytes"))

	require.NoError(t, h.runner.Run(context.Background(), job))

	require.Len(t, h.store.artifacts, 1)
	assert.Equal(t, "audio/mp3", h.store.artifacts[0].ContentType)
}

func TestExtractAudio_TranscodesNonMP3Audio(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageExtractAudio, stage.ExtractAudioPayload{FileName: "call.wav"})
	h.storage.put(storage.RawPath(job.OrgID, job.CallID, "call.wav"), []byte("wav-bytes"))

	require.NoError(t, h.runner.Run(context.Background(), job))
	assert.Equal(t, 1, h.transcoder.mp3Calls)
	assert.Contains(t, h.storage.objects, storage.AudioPath(job.OrgID, job.CallID))
}

func TestExtractAudio_SkipsWhenAudioExists(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageExtractAudio, stage.ExtractAudioPayload{FileName: "call.mp3"})
	audioPath := storage.AudioPath(job.OrgID, job.CallID)
	rawPath := storage.RawPath(job.OrgID, job.CallID, "call.mp3")
	h.storage.put(audioPath, []byte("existing"))
	h.storage.put(rawPath, []byte("leftover"))

	require.NoError(t, h.runner.Run(context.Background(), job))

	assert.NotContains(t, h.storage.objects, rawPath, "leftover raw upload is cleaned up")
	require.Len(t, h.queue.enqueued, 1)
	assert.Equal(t, models.StageTranscribeStart, h.queue.enqueued[0].Stage)
	assert.Empty(t, h.store.artifacts, "no re-registration on skip")
}

func TestExtractAudio_NoReEnqueueWhenTranscriptExists(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageExtractAudio, stage.ExtractAudioPayload{FileName: "call.mp3"})
	h.storage.put(storage.AudioPath(job.OrgID, job.CallID), []byte("existing"))
	h.storage.put(storage.TranscriptPath(job.OrgID, job.CallID), []byte("{}"))

	require.NoError(t, h.runner.Run(context.Background(), job))
	assert.Empty(t, h.queue.enqueued)
}

func TestExtractAudio_TranscriptUploadBypassesAudio(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageExtractAudio, stage.ExtractAudioPayload{FileName: "meeting.txt"})
	rawPath := storage.RawPath(job.OrgID, job.CallID, "meeting.txt")
	h.storage.put(rawPath, []byte("hello from the call"))

	require.NoError(t, h.runner.Run(context.Background(), job))

	require.Len(t, h.queue.enqueued, 1)
	assert.Equal(t, models.StageTranscribeStart, h.queue.enqueued[0].Stage)

	var next stage.TranscribeStartPayload
	require.NoError(t, payloadOf(h.queue.enqueued[0], &next))
	assert.Equal(t, "hello from the call", next.TranscriptText)
	assert.Equal(t, 0, h.transcoder.mp3Calls)
	assert.NotContains(t, h.storage.objects, rawPath, "raw upload should be removed")
}

func TestTranscribeStart_ReschedulesWhenAudioMissing(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageTranscribeStart, stage.TranscribeStartPayload{
		AudioObjectPath: "orgs/x/calls/y/artifacts/audio/y.mp3",
	})

	require.NoError(t, h.runner.Run(context.Background(), job))

	assert.Equal(t, 0, h.speech.startCalls)
	require.Len(t, h.queue.delayed, 1)
	assert.Equal(t, models.StageTranscribeStart, h.queue.delayed[0].req.Stage)
	assert.WithinDuration(t, time.Now().Add(10*time.Second), h.queue.delayed[0].at, 2*time.Second)
}

func TestTranscribeStart_ManualBypassSkipsProvider(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageTranscribeStart, stage.TranscribeStartPayload{
		AudioObjectPath: storage.AudioPath(uuid.New(), uuid.New()),
		TranscriptText:  "manual text",
	})

	require.NoError(t, h.runner.Run(context.Background(), job))

	assert.Equal(t, 0, h.speech.startCalls)
	assert.Equal(t, 0, h.transcoder.oggCalls)
	require.Len(t, h.queue.delayed, 1)
	assert.Equal(t, models.StageTranscribePoll, h.queue.delayed[0].req.Stage)
	assert.Equal(t, models.PollMaxAttempts, h.queue.delayed[0].req.MaxAttempts)

	var next stage.TranscribePollPayload
	require.NoError(t, payloadOf(h.queue.delayed[0].req, &next))
	assert.Equal(t, "manual", next.OperationID)
	assert.Equal(t, "manual text", next.TranscriptText)
}

func TestTranscribeStart_StartsRecognition(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageTranscribeStart, stage.TranscribeStartPayload{
		AudioObjectPath: "audio/path.mp3",
	})
	h.storage.put("audio/path.mp3", []byte("mp3"))

	var startedURI string
	h.speech.startFn = func(audioURI string) (string, error) {
		startedURI = audioURI
		return "op-42", nil
	}

	require.NoError(t, h.runner.Run(context.Background(), job))

	assert.Equal(t, 1, h.transcoder.oggCalls)
	oggPath := storage.TranscriptAudioPath(job.OrgID, job.CallID)
	assert.Contains(t, h.storage.objects, oggPath)
	assert.Equal(t, "https://storage.example.net/calls/"+oggPath, startedURI)

	require.Len(t, h.queue.delayed, 1)
	var next stage.TranscribePollPayload
	require.NoError(t, payloadOf(h.queue.delayed[0].req, &next))
	assert.Equal(t, "op-42", next.OperationID)
	assert.Equal(t, storage.TranscriptPath(job.OrgID, job.CallID), next.TranscriptObjectPath)
}

func pollPayload(job *models.Job) stage.TranscribePollPayload {
	return stage.TranscribePollPayload{
		OperationID:               "op-42",
		TranscriptObjectPath:      storage.TranscriptPath(job.OrgID, job.CallID),
		TranscriptAudioObjectPath: storage.TranscriptAudioPath(job.OrgID, job.CallID),
	}
}

func TestTranscribePoll_ReschedulesWhilePending(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageTranscribePoll, stage.TranscribePollPayload{})
	p := pollPayload(job)
	job.Payload, _ = json.Marshal(p)

	h.speech.statusFn = func(string) (speech.OperationStatus, error) {
		return speech.OperationStatus{Done: false}, nil
	}

	require.NoError(t, h.runner.Run(context.Background(), job))
	require.Len(t, h.queue.delayed, 1)
	assert.Equal(t, models.StageTranscribePoll, h.queue.delayed[0].req.Stage)
	assert.Equal(t, models.PollMaxAttempts, h.queue.delayed[0].req.MaxAttempts)
}

func TestTranscribePoll_OperationErrorFailsJob(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageTranscribePoll, stage.TranscribePollPayload{})
	job.Payload, _ = json.Marshal(pollPayload(job))

	h.speech.statusFn = func(string) (speech.OperationStatus, error) {
		return speech.OperationStatus{Done: true, ErrorMessage: "audio too long"}, nil
	}

	err := h.runner.Run(context.Background(), job)
	require.ErrorContains(t, err, "audio too long")
	assert.Empty(t, h.queue.enqueued)
	assert.Empty(t, h.queue.delayed)
}

func TestTranscribePoll_EmptyTranscriptFails(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageTranscribePoll, stage.TranscribePollPayload{})
	job.Payload, _ = json.Marshal(pollPayload(job))

	err := h.runner.Run(context.Background(), job)
	require.ErrorContains(t, err, "empty transcript")
}

func TestTranscribePoll_WritesTranscriptAndAdvances(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageTranscribePoll, stage.TranscribePollPayload{})
	p := pollPayload(job)
	job.Payload, _ = json.Marshal(p)
	h.storage.put(p.TranscriptAudioObjectPath, []byte("ogg"))

	h.speech.fetchFn = func(string) ([]speech.Chunk, error) {
		return []speech.Chunk{{
			ChannelTag: "1",
			Words: []speech.Word{
				{StartTime: "0s", EndTime: "1s", Text: "привет", SpeakerTag: "1"},
			},
		}}, nil
	}

	require.NoError(t, h.runner.Run(context.Background(), job))

	raw, ok := h.storage.objects[p.TranscriptObjectPath]
	require.True(t, ok)
	var doc struct {
		Language string           `json:"language"`
		Provider string           `json:"provider"`
		Segments []speech.Segment `json:"segments"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "ru-RU", doc.Language)
	assert.Equal(t, "speechkit", doc.Provider)
	require.Len(t, doc.Segments, 1)
	assert.Equal(t, "привет", doc.Segments[0].Text)

	assert.NotContains(t, h.storage.objects, p.TranscriptAudioObjectPath, "intermediate ogg is removed")
	assert.Equal(t, models.CallStatusTranscribed, h.store.statusUpdates[job.CallID])

	require.Len(t, h.queue.enqueued, 1)
	assert.Equal(t, models.StageAnalyze, h.queue.enqueued[0].Stage)
	var next stage.AnalyzePayload
	require.NoError(t, payloadOf(h.queue.enqueued[0], &next))
	assert.Equal(t, p.TranscriptObjectPath, next.TranscriptObjectPath)
	assert.Equal(t, job.CallID.String()+".json", next.TranscriptFileName)
}

func TestTranscribePoll_ManualTranscript(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageTranscribePoll, stage.TranscribePollPayload{})
	p := pollPayload(job)
	p.OperationID = "manual"
	p.TranscriptText = "manual transcript text"
	job.Payload, _ = json.Marshal(p)

	require.NoError(t, h.runner.Run(context.Background(), job))

	raw, ok := h.storage.objects[p.TranscriptObjectPath]
	require.True(t, ok)
	var doc struct {
		Provider string           `json:"provider"`
		Segments []speech.Segment `json:"segments"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "manual", doc.Provider)
	require.Len(t, doc.Segments, 1)
	assert.Nil(t, doc.Segments[0].StartSec)
	assert.Equal(t, "manual transcript text", doc.Segments[0].Text)
}

func TestAnalyze_GeneratesAndPersists(t *testing.T) {
	h := newHarness(t)
	transcriptPath := "orgs/o/calls/c/artifacts/transcript/c.json"
	job := newJob(models.StageAnalyze, stage.AnalyzePayload{
		TranscriptObjectPath: transcriptPath,
		TranscriptFileName:   "c.json",
		SalesRepName:         "Ivan",
		Source:               "upload",
	})
	h.storage.put(transcriptPath, []byte(`{"segments":[]}`))

	require.NoError(t, h.runner.Run(context.Background(), job))

	analysisPath := storage.AnalysisPath(job.OrgID, job.CallID, job.ID)
	raw, ok := h.storage.objects[analysisPath]
	require.True(t, ok)

	var doc models.AnalysisDocument
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.NoError(t, doc.Validate())

	require.Len(t, h.store.artifacts, 1)
	assert.Equal(t, models.ArtifactKindAnalysis, h.store.artifacts[0].Kind)

	require.Len(t, h.queue.enqueued, 1)
	assert.Equal(t, models.StagePersistAnalysis, h.queue.enqueued[0].Stage)
	var next stage.PersistAnalysisPayload
	require.NoError(t, payloadOf(h.queue.enqueued[0], &next))
	assert.Equal(t, analysisPath, next.AnalysisObjectPath)
	assert.Equal(t, "Ivan", next.SalesRepName)
}

func TestAnalyze_SkipsGenerationWhenArtifactExists(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageAnalyze, stage.AnalyzePayload{
		TranscriptObjectPath: "t.json",
	})
	h.storage.put(storage.AnalysisPath(job.OrgID, job.CallID, job.ID), []byte("{}"))

	require.NoError(t, h.runner.Run(context.Background(), job))
	require.Len(t, h.queue.enqueued, 1)
	assert.Equal(t, models.StagePersistAnalysis, h.queue.enqueued[0].Stage)
}

func validAnalysisJSON(t *testing.T) []byte {
	t.Helper()
	result, err := mock.NewProvider().Generate(context.Background(), models.GenerateRequest{})
	require.NoError(t, err)
	return result.JSON
}

func TestPersistAnalysis_SavesDocument(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StagePersistAnalysis, stage.PersistAnalysisPayload{
		AnalysisObjectPath: "a.json",
	})
	h.storage.put("a.json", validAnalysisJSON(t))

	require.NoError(t, h.runner.Run(context.Background(), job))

	require.Len(t, h.store.saved, 1)
	assert.Equal(t, "a.json", h.store.saved[0].StoragePath)
	assert.Equal(t, job.CallID, h.store.saved[0].CallID)
	assert.Equal(t, "Mock Rep", h.store.saved[0].Doc.Meta.SalesRepName)
}

func TestPersistAnalysis_RejectsMissingVerdict(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StagePersistAnalysis, stage.PersistAnalysisPayload{
		AnalysisObjectPath: "a.json",
	})

	var doc models.AnalysisDocument
	require.NoError(t, json.Unmarshal(validAnalysisJSON(t), &doc))
	doc.BANT.Verdict = ""
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	h.storage.put("a.json", raw)

	err = h.runner.Run(context.Background(), job)
	require.EqualError(t, err, "analysis bant.verdict is required")
	assert.Empty(t, h.store.saved, "validation failure never opens a transaction")
}

func TestRun_MalformedPayloadFails(t *testing.T) {
	h := newHarness(t)
	job := newJob(models.StageExtractAudio, map[string]any{})

	err := h.runner.Run(context.Background(), job)
	require.ErrorContains(t, err, "fileName is required")
}
