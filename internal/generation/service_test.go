package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackzampolin/folio/internal/llmcall"
	"github.com/jackzampolin/folio/internal/prompts/concepts"
	"github.com/jackzampolin/folio/internal/prompts/image"
	"github.com/jackzampolin/folio/internal/providers"
)

const volcanoConcepts = "```json\n" + `{"concepts":[
  {"title":"Magma Rivers","paragraphs":["Molten rock flows downhill."]},
  {"title":"Ash Clouds","paragraphs":["Fine ash travels far."]},
  {"title":"Ring of Fire","paragraphs":["Most volcanoes ring the Pacific."]}
]}` + "\n```"

const volcanoStyle = `{
  "palette": ["1a1a1a", "ff4500", {"name": "ember", "hex": "FFB347"}],
  "lighting": "molten rim light",
  "medium": "matte painting",
  "composition": "low-angle wide shot",
  "influences": ["Roger Deakins"],
  "keywords": ["lava", "smoke", "ember", "dreamy"],
  "negativeKeywords": ["text", "logo", "watermark", "signature"]
}`

// newTestService wires a service to one mock backend named "replicate".
func newTestService(t *testing.T) (*Service, *providers.MockClient, *llmcall.Store) {
	t.Helper()
	mock := providers.NewMockClient()
	reg := providers.NewRegistry()
	reg.Register("replicate", mock)
	calls := llmcall.NewStore(0)
	return NewService(reg, DefaultConfig(), calls, nil), mock, calls
}

// textResponses scripts successive text job outputs.
func textResponses(outputs ...string) func(int, string, map[string]any) (*providers.Job, error) {
	return func(call int, model string, input map[string]any) (*providers.Job, error) {
		if call >= len(outputs) {
			return nil, fmt.Errorf("unexpected call %d", call)
		}
		return &providers.Job{Status: providers.StatusSucceeded, Output: providers.TextOutput(outputs[call])}, nil
	}
}

func TestGenerateConceptsValidation(t *testing.T) {
	tests := []struct {
		name string
		req  ConceptsRequest
	}{
		{name: "empty topic", req: ConceptsRequest{Topic: "  ", Count: 3}},
		{name: "count too large", req: ConceptsRequest{Topic: "x", Count: 101}},
		{name: "negative count", req: ConceptsRequest{Topic: "x", Count: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mock, _ := newTestService(t)
			_, err := svc.GenerateConcepts(context.Background(), tt.req)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("error = %v, want *ValidationError", err)
			}
			if n := len(mock.Submissions()); n != 0 {
				t.Errorf("submissions = %d, want 0", n)
			}
		})
	}
}

func TestGenerateConcepts(t *testing.T) {
	t.Run("parses fenced output", func(t *testing.T) {
		svc, mock, calls := newTestService(t)
		mock.OnSubmit = textResponses(volcanoConcepts)

		resp, err := svc.GenerateConcepts(context.Background(), ConceptsRequest{Topic: "volcanoes", Count: 3})
		if err != nil {
			t.Fatalf("GenerateConcepts() error = %v", err)
		}
		if len(resp.Concepts) != 3 || resp.Concepts[0].Title != "Magma Rivers" {
			t.Errorf("concepts = %+v", resp.Concepts)
		}

		subs := mock.Submissions()
		if len(subs) != 1 {
			t.Fatalf("submissions = %d, want 1", len(subs))
		}
		if subs[0].Model != "openai/gpt-5-nano" {
			t.Errorf("model = %q", subs[0].Model)
		}
		if subs[0].Input["temperature"] != 0.7 {
			t.Errorf("temperature = %v, want 0.7", subs[0].Input["temperature"])
		}
		if subs[0].Input["system_prompt"] != concepts.SystemPrompt() {
			t.Error("system prompt not sent")
		}
		if calls.Len() != 1 {
			t.Errorf("recorded calls = %d, want 1", calls.Len())
		}
	})

	t.Run("defaults count to twelve", func(t *testing.T) {
		svc, mock, _ := newTestService(t)
		mock.OnSubmit = textResponses(volcanoConcepts)

		if _, err := svc.GenerateConcepts(context.Background(), ConceptsRequest{Topic: "volcanoes"}); err != nil {
			t.Fatalf("GenerateConcepts() error = %v", err)
		}
		prompt, _ := mock.Submissions()[0].Input["prompt"].(string)
		if !strings.Contains(prompt, "Generate 12 interesting") {
			t.Errorf("prompt = %q", prompt)
		}
	})

	t.Run("truncates to count", func(t *testing.T) {
		svc, mock, _ := newTestService(t)
		mock.OnSubmit = textResponses(volcanoConcepts)

		resp, err := svc.GenerateConcepts(context.Background(), ConceptsRequest{Topic: "volcanoes", Count: 2})
		if err != nil {
			t.Fatalf("GenerateConcepts() error = %v", err)
		}
		if len(resp.Concepts) != 2 {
			t.Errorf("concepts = %d, want 2", len(resp.Concepts))
		}
	})

	t.Run("retries once on malformed output", func(t *testing.T) {
		svc, mock, calls := newTestService(t)
		mock.OnSubmit = textResponses("Sure! Here are some concepts about volcanoes.", volcanoConcepts)

		resp, err := svc.GenerateConcepts(context.Background(), ConceptsRequest{Topic: "volcanoes", Count: 3})
		if err != nil {
			t.Fatalf("GenerateConcepts() error = %v", err)
		}
		if len(resp.Concepts) != 3 {
			t.Errorf("concepts = %d, want 3", len(resp.Concepts))
		}

		subs := mock.Submissions()
		if len(subs) != 2 {
			t.Fatalf("submissions = %d, want 2", len(subs))
		}
		retryPrompt, _ := subs[1].Input["prompt"].(string)
		if !strings.HasSuffix(retryPrompt, concepts.RetryReminder) {
			t.Errorf("retry prompt missing reminder: %q", retryPrompt)
		}
		if subs[1].Input["temperature"] != 0.6 {
			t.Errorf("retry temperature = %v, want 0.6", subs[1].Input["temperature"])
		}

		recorded := calls.List(llmcall.QueryFilter{Stage: StageConcepts})
		if len(recorded) != 2 || recorded[0].Attempt != 2 {
			t.Errorf("recorded = %+v", recorded)
		}
	})

	t.Run("second malformed output fails", func(t *testing.T) {
		svc, mock, _ := newTestService(t)
		mock.OnSubmit = textResponses("nope", `{"concepts":[{"title":"A","paragraphs":["a","b"]}]}`)

		_, err := svc.GenerateConcepts(context.Background(), ConceptsRequest{Topic: "volcanoes", Count: 3})
		var ge *GenerationError
		if !errors.As(err, &ge) || ge.Stage != StageConcepts {
			t.Fatalf("error = %v, want concepts *GenerationError", err)
		}
		if n := len(mock.Submissions()); n != 2 {
			t.Errorf("submissions = %d, want exactly 2", n)
		}
	})

	t.Run("failed job is not retried", func(t *testing.T) {
		svc, mock, _ := newTestService(t)
		mock.OnSubmit = func(int, string, map[string]any) (*providers.Job, error) {
			return &providers.Job{Status: providers.StatusFailed, Error: "model overloaded"}, nil
		}

		_, err := svc.GenerateConcepts(context.Background(), ConceptsRequest{Topic: "volcanoes", Count: 3})
		var ge *GenerationError
		if !errors.As(err, &ge) || !strings.Contains(err.Error(), "model overloaded") {
			t.Fatalf("error = %v, want *GenerationError with job error", err)
		}
		if n := len(mock.Submissions()); n != 1 {
			t.Errorf("submissions = %d, want 1", n)
		}
	})

	t.Run("submit error passes through", func(t *testing.T) {
		svc, mock, _ := newTestService(t)
		mock.OnSubmit = func(int, string, map[string]any) (*providers.Job, error) {
			return nil, &providers.AuthError{Backend: "replicate"}
		}

		_, err := svc.GenerateConcepts(context.Background(), ConceptsRequest{Topic: "volcanoes"})
		var ae *providers.AuthError
		if !errors.As(err, &ae) {
			t.Fatalf("error = %v, want *providers.AuthError", err)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		svc := NewService(providers.NewRegistry(), DefaultConfig(), nil, nil)
		if _, err := svc.GenerateConcepts(context.Background(), ConceptsRequest{Topic: "x"}); err == nil {
			t.Fatal("expected error for missing backend")
		}
	})
}

func TestGenerateStyleGuide(t *testing.T) {
	t.Run("valid guide is normalized", func(t *testing.T) {
		svc, mock, _ := newTestService(t)
		mock.OnSubmit = textResponses(volcanoStyle)

		resp, err := svc.GenerateStyleGuide(context.Background(), StyleRequest{
			Topic:         "volcanoes",
			ConceptTitles: []string{"Magma Rivers", "Ash Clouds"},
		})
		if err != nil {
			t.Fatalf("GenerateStyleGuide() error = %v", err)
		}
		want := []string{"#1a1a1a", "#ff4500", "#FFB347"}
		for i, c := range resp.Style.Palette {
			if c.Hex != want[i] {
				t.Errorf("Palette[%d] = %q, want %q", i, c.Hex, want[i])
			}
		}
		prompt, _ := mock.Submissions()[0].Input["prompt"].(string)
		if !strings.Contains(prompt, "Magma Rivers; Ash Clouds") {
			t.Errorf("prompt missing titles: %q", prompt)
		}
	})

	t.Run("invalid guide fails without retry", func(t *testing.T) {
		svc, mock, _ := newTestService(t)
		mock.OnSubmit = textResponses(`{"palette":["#000000"]}`)

		_, err := svc.GenerateStyleGuide(context.Background(), StyleRequest{Topic: "volcanoes"})
		var ge *GenerationError
		if !errors.As(err, &ge) || ge.Stage != StageStyle {
			t.Fatalf("error = %v, want style *GenerationError", err)
		}
		if n := len(mock.Submissions()); n != 1 {
			t.Errorf("submissions = %d, want 1", n)
		}
	})

	t.Run("empty topic", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		_, err := svc.GenerateStyleGuide(context.Background(), StyleRequest{})
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("error = %v, want *ValidationError", err)
		}
	})
}

func TestStartImagePredictions(t *testing.T) {
	items := []StartItem{
		{ConceptID: "c1", Prompt: "first"},
		{ConceptID: "c2", Prompt: "bad"},
		{ConceptID: "c3", Prompt: "third"},
	}

	t.Run("isolates failures and keeps order", func(t *testing.T) {
		svc, mock, _ := newTestService(t)
		mock.OnSubmit = func(call int, model string, input map[string]any) (*providers.Job, error) {
			prompt, _ := input["prompt"].(string)
			if strings.HasPrefix(prompt, "bad") {
				return nil, &providers.RemoteError{Backend: "replicate", StatusCode: 422, Body: "invalid prompt"}
			}
			return &providers.Job{ID: "job-" + strings.Fields(prompt)[0], Status: providers.StatusStarting}, nil
		}

		resp, err := svc.StartImagePredictions(context.Background(), StartRequest{Items: items})
		if err != nil {
			t.Fatalf("StartImagePredictions() error = %v", err)
		}
		if len(resp.Started) != 2 || resp.Started[0] != (Handle{ConceptID: "c1", JobID: "job-first"}) || resp.Started[1] != (Handle{ConceptID: "c3", JobID: "job-third"}) {
			t.Errorf("Started = %+v", resp.Started)
		}
		if len(resp.Failed) != 1 || resp.Failed[0].ConceptID != "c2" {
			t.Errorf("Failed = %+v", resp.Failed)
		}
		if n := len(mock.Submissions()); n != 3 {
			t.Errorf("submissions = %d, want 3", n)
		}
	})

	t.Run("low quality input", func(t *testing.T) {
		svc, mock, _ := newTestService(t)
		mock.OnSubmit = func(int, string, map[string]any) (*providers.Job, error) {
			return &providers.Job{Status: providers.StatusStarting}, nil
		}

		if _, err := svc.StartImagePredictions(context.Background(), StartRequest{Items: items[:1]}); err != nil {
			t.Fatalf("StartImagePredictions() error = %v", err)
		}
		sub := mock.Submissions()[0]
		if sub.Model != "black-forest-labs/flux-schnell" {
			t.Errorf("model = %q", sub.Model)
		}
		if sub.Input["prompt"] != "first "+image.StrongNoText {
			t.Errorf("prompt = %q", sub.Input["prompt"])
		}
		if sub.Input["aspect_ratio"] != "9:16" {
			t.Errorf("aspect_ratio = %v", sub.Input["aspect_ratio"])
		}
		if _, ok := sub.Input["negative_prompt"]; ok {
			t.Error("negative_prompt sent to a model without support")
		}
	})

	t.Run("high quality adds negative prompt", func(t *testing.T) {
		svc, mock, _ := newTestService(t)
		mock.OnSubmit = func(int, string, map[string]any) (*providers.Job, error) {
			return &providers.Job{Status: providers.StatusStarting}, nil
		}

		if _, err := svc.StartImagePredictions(context.Background(), StartRequest{Items: items[:1], Quality: QualityHigh}); err != nil {
			t.Fatalf("StartImagePredictions() error = %v", err)
		}
		sub := mock.Submissions()[0]
		if sub.Model != DefaultConfig().Images[QualityHigh].Name {
			t.Errorf("model = %q", sub.Model)
		}
		if sub.Input["negative_prompt"] != image.StrongNegative {
			t.Errorf("negative_prompt = %v", sub.Input["negative_prompt"])
		}
	})

	t.Run("validation", func(t *testing.T) {
		svc, mock, _ := newTestService(t)
		bad := []StartRequest{
			{Items: items, Quality: "ultra"},
			{Items: []StartItem{{ConceptID: "c1"}}},
			{Items: []StartItem{{Prompt: "x"}}},
		}
		for _, req := range bad {
			_, err := svc.StartImagePredictions(context.Background(), req)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("StartImagePredictions(%+v) error = %v, want *ValidationError", req, err)
			}
		}
		if n := len(mock.Submissions()); n != 0 {
			t.Errorf("submissions = %d, want 0", n)
		}
	})
}

func TestCheckImagePredictions(t *testing.T) {
	svc, mock, _ := newTestService(t)
	mock.SetJob(providers.Job{ID: "j-done", Status: providers.StatusSucceeded, Output: providers.ChunksOutput("https://img/1.webp")})
	mock.SetJob(providers.Job{ID: "j-obj", Status: providers.StatusSucceeded, Output: providers.RawOutput([]byte(`{"url":"https://img/2.webp"}`))})
	mock.SetJob(providers.Job{ID: "j-empty", Status: providers.StatusSucceeded})
	mock.SetJob(providers.Job{ID: "j-failed", Status: providers.StatusFailed, Error: "NSFW"})
	mock.SetJob(providers.Job{ID: "j-canceled", Status: providers.StatusCanceled})
	mock.SetJob(providers.Job{ID: "j-running", Status: providers.StatusProcessing})
	mock.SetJob(providers.Job{ID: "j-flaky", Status: providers.StatusSucceeded, Output: providers.TextOutput("https://img/3.webp")})
	mock.SetGetError("j-flaky", errors.New("connection reset"))

	resp, err := svc.CheckImagePredictions(context.Background(), CheckRequest{Items: []Handle{
		{ConceptID: "a", JobID: "j-done"},
		{ConceptID: "b", JobID: "j-obj"},
		{ConceptID: "c", JobID: "j-empty"},
		{ConceptID: "d", JobID: "j-failed"},
		{ConceptID: "e", JobID: "j-canceled"},
		{ConceptID: "f", JobID: "j-running"},
		{ConceptID: "g", JobID: "j-flaky"},
	}})
	if err != nil {
		t.Fatalf("CheckImagePredictions() error = %v", err)
	}

	wantCompleted := []Completed{{"a", "https://img/1.webp"}, {"b", "https://img/2.webp"}}
	if len(resp.Completed) != 2 || resp.Completed[0] != wantCompleted[0] || resp.Completed[1] != wantCompleted[1] {
		t.Errorf("Completed = %+v", resp.Completed)
	}
	wantFailed := []ItemError{{"c", ErrNoImageURL.Error()}, {"d", "NSFW"}, {"e", "canceled"}}
	if len(resp.Failed) != 3 {
		t.Fatalf("Failed = %+v", resp.Failed)
	}
	for i, f := range resp.Failed {
		if f != wantFailed[i] {
			t.Errorf("Failed[%d] = %+v, want %+v", i, f, wantFailed[i])
		}
	}
	wantPending := []Handle{{"f", "j-running"}, {"g", "j-flaky"}}
	if len(resp.Pending) != 2 || resp.Pending[0] != wantPending[0] || resp.Pending[1] != wantPending[1] {
		t.Errorf("Pending = %+v", resp.Pending)
	}
	if n := len(mock.Submissions()); n != 0 {
		t.Errorf("check must not submit, got %d submissions", n)
	}
}

func TestVolcanoesPipeline(t *testing.T) {
	svc, mock, calls := newTestService(t)
	mock.OnSubmit = func(call int, model string, input map[string]any) (*providers.Job, error) {
		switch call {
		case 0:
			return &providers.Job{Status: providers.StatusSucceeded, Output: providers.TextOutput(volcanoConcepts)}, nil
		case 1:
			return &providers.Job{Status: providers.StatusSucceeded, Output: providers.TextOutput(volcanoStyle)}, nil
		}
		return &providers.Job{ID: fmt.Sprintf("img-%d", call), Status: providers.StatusStarting}, nil
	}
	ctx := context.Background()

	cr, err := svc.GenerateConcepts(ctx, ConceptsRequest{Topic: "volcanoes", Count: 3})
	if err != nil {
		t.Fatalf("GenerateConcepts() error = %v", err)
	}
	titles := make([]string, len(cr.Concepts))
	for i, c := range cr.Concepts {
		titles[i] = c.Title
	}

	sr, err := svc.GenerateStyleGuide(ctx, StyleRequest{Topic: "volcanoes", ConceptTitles: titles})
	if err != nil {
		t.Fatalf("GenerateStyleGuide() error = %v", err)
	}

	items := make([]StartItem, len(cr.Concepts))
	for i, c := range cr.Concepts {
		items[i] = StartItem{ConceptID: fmt.Sprintf("s%d", i), Prompt: image.FromStyle(c.Title, "volcanoes", sr.Style)}
	}
	started, err := svc.StartImagePredictions(ctx, StartRequest{Items: items})
	if err != nil {
		t.Fatalf("StartImagePredictions() error = %v", err)
	}
	if len(started.Started) != 3 || len(started.Failed) != 0 {
		t.Fatalf("start = %+v", started)
	}
	for i, h := range started.Started {
		if h.ConceptID != items[i].ConceptID {
			t.Errorf("Started[%d] = %s, want %s", i, h.ConceptID, items[i].ConceptID)
		}
	}

	// First job finishes, the rest keep running.
	first := started.Started[0]
	mock.SetJob(providers.Job{ID: first.JobID, Status: providers.StatusSucceeded, Output: providers.ChunksOutput("https://img/magma.webp")})

	check, err := svc.CheckImagePredictions(ctx, CheckRequest{Items: started.Started})
	if err != nil {
		t.Fatalf("CheckImagePredictions() error = %v", err)
	}
	if len(check.Completed) != 1 || check.Completed[0].ConceptID != first.ConceptID {
		t.Errorf("Completed = %+v", check.Completed)
	}
	if len(check.Pending) != 2 {
		t.Errorf("Pending = %+v", check.Pending)
	}
	if calls.Len() != 2 {
		t.Errorf("recorded LLM calls = %d, want 2", calls.Len())
	}
}

func TestGenerateConceptsBlankFields(t *testing.T) {
	blank := `{"concepts":[{"title":"   ","paragraphs":["  "]}]}`

	t.Run("blank output is retried", func(t *testing.T) {
		svc, mock, _ := newTestService(t)
		mock.OnSubmit = textResponses(blank, volcanoConcepts)

		resp, err := svc.GenerateConcepts(context.Background(), ConceptsRequest{Topic: "volcanoes", Count: 1})
		if err != nil {
			t.Fatalf("GenerateConcepts() error = %v", err)
		}
		if len(resp.Concepts) != 1 || resp.Concepts[0].Title != "Magma Rivers" {
			t.Errorf("concepts = %+v", resp.Concepts)
		}
		if n := len(mock.Submissions()); n != 2 {
			t.Errorf("submissions = %d, want 2", n)
		}
	})

	t.Run("blank twice fails", func(t *testing.T) {
		svc, mock, _ := newTestService(t)
		mock.OnSubmit = textResponses(blank, blank)

		_, err := svc.GenerateConcepts(context.Background(), ConceptsRequest{Topic: "volcanoes", Count: 1})
		var ge *GenerationError
		if !errors.As(err, &ge) {
			t.Fatalf("error = %v, want *GenerationError", err)
		}
	})
}

func TestCheckImagePredictionsTierUnavailable(t *testing.T) {
	mock := providers.NewMockClient()
	mock.SetJob(providers.Job{ID: "j-low", Status: providers.StatusSucceeded, Output: providers.ChunksOutput("https://img/low.webp")})

	cfg := DefaultConfig()
	cfg.Images[QualityHigh] = ImageModel{Backend: "missing", Name: "stability-ai/stable-diffusion-3.5-large"}

	reg := providers.NewRegistry()
	reg.Register("replicate", mock)
	svc := NewService(reg, cfg, nil, nil)

	resp, err := svc.CheckImagePredictions(context.Background(), CheckRequest{Items: []Handle{{ConceptID: "a", JobID: "j-low"}}})
	if err != nil {
		t.Fatalf("CheckImagePredictions() error = %v", err)
	}
	if len(resp.Completed) != 1 || resp.Completed[0].ImageURL != "https://img/low.webp" {
		t.Errorf("Completed = %+v", resp.Completed)
	}

	t.Run("no backend at all", func(t *testing.T) {
		svc := NewService(providers.NewRegistry(), DefaultConfig(), nil, nil)
		_, err := svc.CheckImagePredictions(context.Background(), CheckRequest{Items: []Handle{{ConceptID: "a", JobID: "j"}}})
		if err == nil {
			t.Error("expected error with no image backend")
		}
	})
}
