package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/RowanDark/cipherkit/internal/cipher"
	"github.com/RowanDark/cipherkit/internal/logging"
	"github.com/RowanDark/cipherkit/internal/observability/metrics"
)

// CipherOperationRequest represents a request to execute a cipher operation
type CipherOperationRequest struct {
	Operation string                 `json:"operation"`
	Input     string                 `json:"input"`
	Params    map[string]interface{} `json:"params,omitempty"`
}

// CipherOperationResponse represents the result of a cipher operation
type CipherOperationResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// CipherPipelineRequest represents a request to execute a pipeline of
// operations. Reverse runs the inverse pipeline instead.
type CipherPipelineRequest struct {
	Input      string                   `json:"input"`
	Operations []cipher.OperationConfig `json:"operations"`
	Reverse    bool                     `json:"reverse,omitempty"`
}

// CipherPipelineResponse represents the result of a pipeline execution
type CipherPipelineResponse struct {
	Output   string   `json:"output"`
	Pipeline []string `json:"pipeline,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// CipherDetectRequest represents a request to auto-detect a cipher
type CipherDetectRequest struct {
	Input string `json:"input"`
}

// CipherDetectResponse represents the detection result
type CipherDetectResponse struct {
	Detections []cipher.DetectionResult `json:"detections"`
}

// CipherSmartDecodeRequest represents a request for smart auto-decode
type CipherSmartDecodeRequest struct {
	Input string `json:"input"`
}

// CipherSmartDecodeResponse represents the smart decode result
type CipherSmartDecodeResponse struct {
	Output     string                 `json:"output"`
	Encoding   string                 `json:"encoding,omitempty"`
	Pipeline   []string               `json:"pipeline"`
	Params     map[string]interface{} `json:"params,omitempty"`
	Confidence float64                `json:"confidence"`
	Error      string                 `json:"error,omitempty"`
}

// RecipeSaveRequest represents a request to save a recipe
type RecipeSaveRequest struct {
	Name        string                   `json:"name"`
	Description string                   `json:"description"`
	Tags        []string                 `json:"tags,omitempty"`
	Operations  []cipher.OperationConfig `json:"operations"`
	Reversible  bool                     `json:"reversible"`
}

// RecipeRunRequest represents a request to run a saved recipe
type RecipeRunRequest struct {
	Input   string `json:"input"`
	Reverse bool   `json:"reverse,omitempty"`
}

// RecipeListResponse represents the list of recipes
type RecipeListResponse struct {
	Recipes []cipher.Recipe `json:"recipes"`
}

// RecipeExportResponse represents an exported recipe
type RecipeExportResponse struct {
	Recipe cipher.Recipe `json:"recipe"`
}

var recipeContentTypes = map[string]string{
	cipher.FormatJSON: "application/json",
	cipher.FormatYAML: "application/yaml",
	cipher.FormatCBOR: "application/cbor",
}

// prepare resolves the pipeline to run, inverting it when reverse is set,
// and applies configured defaults to every step.
func (s *Server) prepare(ops []cipher.OperationConfig, reverse bool) (*cipher.Pipeline, error) {
	p := &cipher.Pipeline{Operations: ops, Reversible: true}
	if reverse {
		inverted, err := s.registry.Invert(p)
		if err != nil {
			return nil, err
		}
		p = inverted
	}
	return p.WithDefaults(s.cfg.Defaults), nil
}

func stepNames(p *cipher.Pipeline) []string {
	names := make([]string, len(p.Operations))
	for i, step := range p.Operations {
		names[i] = step.Name
	}
	return names
}

// writeContextError answers for a cancelled or expired request and reports
// whether it did.
func writeContextError(ctx context.Context, w http.ResponseWriter) bool {
	switch ctx.Err() {
	case nil:
		return false
	case context.Canceled:
		http.Error(w, "request canceled", http.StatusRequestTimeout)
	default:
		http.Error(w, "request timeout", http.StatusGatewayTimeout)
	}
	return true
}

// statusFor maps a pipeline error to a status code: unknown operations are
// client mistakes, everything else is a cipher failure.
func statusFor(err error) int {
	if errors.Is(err, cipher.ErrUnknownOperation) {
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}

// handleCipherExecute handles execution of a single cipher operation
func (s *Server) handleCipherExecute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CipherOperationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if req.Operation == "" {
		http.Error(w, "operation field is required", http.StatusBadRequest)
		return
	}

	op, exists := s.registry.Get(req.Operation)
	if !exists {
		s.writeJSON(w, http.StatusBadRequest, CipherOperationResponse{
			Error: "unknown operation: " + req.Operation,
		})
		return
	}

	ctx := r.Context()
	params := req.Params
	if s.cfg.Defaults != nil {
		params = cipher.MergeParams(s.cfg.Defaults(req.Operation), req.Params)
	}
	start := time.Now()
	result, err := op.Execute(ctx, []byte(req.Input), params)
	metrics.ObserveOperation("http", req.Operation, time.Since(start), err)
	_ = s.audit.Operation(RequestID(ctx), req.Operation, params, []byte(req.Input), result, err)
	if err != nil {
		if writeContextError(ctx, w) {
			return
		}
		s.writeJSON(w, http.StatusUnprocessableEntity, CipherOperationResponse{
			Error: err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, CipherOperationResponse{
		Output: string(result),
	})
}

// handleCipherPipeline handles execution of a pipeline of operations
func (s *Server) handleCipherPipeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CipherPipelineRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if len(req.Operations) == 0 {
		http.Error(w, "operations field is required and must not be empty", http.StatusBadRequest)
		return
	}

	s.runPipeline(w, r, "", req.Operations, req.Input, req.Reverse)
}

func (s *Server) runPipeline(w http.ResponseWriter, r *http.Request, recipe string, ops []cipher.OperationConfig, input string, reverse bool) {
	ctx := r.Context()

	pipeline, err := s.prepare(ops, reverse)
	if err != nil {
		s.writeJSON(w, statusFor(err), CipherPipelineResponse{Error: err.Error()})
		return
	}

	start := time.Now()
	result, err := s.registry.Run(ctx, pipeline, []byte(input))
	metrics.ObserveOperation("http", "pipeline", time.Since(start), err)
	event := logging.AuditEvent{
		RequestID:  RequestID(ctx),
		EventType:  logging.EventPipelineExecuted,
		Operation:  strings.Join(stepNames(pipeline), ","),
		InputSize:  len(input),
		OutputSize: len(result),
		Decision:   logging.DecisionSuccess,
		Metadata:   map[string]any{"steps": len(pipeline.Operations), "reverse": reverse},
	}
	if recipe != "" {
		event.Metadata["recipe"] = recipe
	}
	if err != nil {
		event.Decision = logging.DecisionFailure
		event.Reason = err.Error()
	}
	_ = s.audit.Emit(event)

	if err != nil {
		if writeContextError(ctx, w) {
			return
		}
		s.writeJSON(w, statusFor(err), CipherPipelineResponse{
			Error: err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, CipherPipelineResponse{
		Output:   string(result),
		Pipeline: stepNames(pipeline),
	})
}

// handleCipherDetect handles auto-detection of the cipher
func (s *Server) handleCipherDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CipherDetectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if req.Input == "" {
		http.Error(w, "input field is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	detections, err := s.detector.Detect(ctx, []byte(req.Input))
	if err != nil {
		if writeContextError(ctx, w) {
			return
		}
		s.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":      err.Error(),
			"detections": []cipher.DetectionResult{},
		})
		return
	}
	_ = s.audit.Emit(logging.AuditEvent{
		RequestID: RequestID(ctx),
		EventType: logging.EventDetectionRun,
		InputSize: len(req.Input),
		Decision:  logging.DecisionInfo,
		Metadata:  map[string]any{"results": len(detections)},
	})
	for _, d := range detections {
		metrics.RecordDetection(d.Encoding)
	}

	s.writeJSON(w, http.StatusOK, CipherDetectResponse{
		Detections: detections,
	})
}

// handleCipherSmartDecode detects the cipher and applies the top suggestion
func (s *Server) handleCipherSmartDecode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req CipherSmartDecodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if req.Input == "" {
		http.Error(w, "input field is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	detections, err := s.detector.Detect(ctx, []byte(req.Input))
	if err != nil && writeContextError(ctx, w) {
		return
	}
	if err != nil || len(detections) == 0 {
		s.writeJSON(w, http.StatusUnprocessableEntity, CipherSmartDecodeResponse{
			Error: "could not detect cipher",
		})
		return
	}

	top := detections[0]
	op, exists := s.registry.Get(top.Operation)
	if !exists {
		s.writeJSON(w, http.StatusInternalServerError, CipherSmartDecodeResponse{
			Error: "operation not found: " + top.Operation,
		})
		return
	}

	metrics.RecordDetection(top.Encoding)
	start := time.Now()
	result, err := op.Execute(ctx, []byte(req.Input), top.Params)
	metrics.ObserveOperation("http", top.Operation, time.Since(start), err)
	_ = s.audit.Operation(RequestID(ctx), top.Operation, top.Params, []byte(req.Input), result, err)
	if err != nil {
		if writeContextError(ctx, w) {
			return
		}
		s.writeJSON(w, http.StatusUnprocessableEntity, CipherSmartDecodeResponse{
			Error: err.Error(),
		})
		return
	}

	s.writeJSON(w, http.StatusOK, CipherSmartDecodeResponse{
		Output:     string(result),
		Encoding:   top.Encoding,
		Pipeline:   []string{top.Operation},
		Params:     top.Params,
		Confidence: top.Confidence,
	})
}

// handleCipherListOperations lists the registered operations, optionally
// filtered by ?type=
func (s *Server) handleCipherListOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var types []cipher.OperationType
	for _, t := range r.URL.Query()["type"] {
		types = append(types, cipher.OperationType(t))
	}

	opList := s.registry.Describe(types...)

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"operations": opList,
	})
}

// handleRecipes lists (GET, optional ?q= search) or saves (POST) recipes
func (s *Server) handleRecipes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleRecipeList(w, r)
	case http.MethodPost:
		s.handleRecipeSave(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRecipeSave(w http.ResponseWriter, r *http.Request) {
	var req RecipeSaveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		http.Error(w, "recipe name required", http.StatusBadRequest)
		return
	}
	if len(req.Operations) == 0 {
		http.Error(w, "operations field is required and must not be empty", http.StatusBadRequest)
		return
	}
	for _, step := range req.Operations {
		if _, ok := s.registry.Get(step.Name); !ok {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "unknown operation: " + step.Name,
			})
			return
		}
	}

	recipe := &cipher.Recipe{
		Name:        req.Name,
		Description: req.Description,
		Tags:        req.Tags,
		Pipeline: cipher.Pipeline{
			Operations: req.Operations,
			Reversible: req.Reversible,
		},
	}
	if existing, ok := s.recipes.GetRecipe(req.Name); ok {
		recipe.CreatedAt = existing.CreatedAt
	}

	if err := s.recipes.SaveRecipe(recipe); err != nil {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
		return
	}
	s.auditRecipe(r.Context(), logging.EventRecipeSaved, recipe.Name)

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "saved",
	})
}

func (s *Server) handleRecipeList(w http.ResponseWriter, r *http.Request) {
	var recipes []*cipher.Recipe
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		recipes = s.recipes.SearchRecipes(q)
	} else {
		recipes = s.recipes.ListRecipes()
	}

	recipeList := make([]cipher.Recipe, len(recipes))
	for i, recipe := range recipes {
		recipeList[i] = *recipe
	}

	s.writeJSON(w, http.StatusOK, RecipeListResponse{
		Recipes: recipeList,
	})
}

// handleRecipeByName loads (GET, optional ?format= export) or deletes
// (DELETE) a single recipe
func (s *Server) handleRecipeByName(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	recipe, exists := s.recipes.GetRecipe(name)

	switch r.Method {
	case http.MethodGet:
		if !exists {
			http.Error(w, "recipe not found", http.StatusNotFound)
			return
		}
		format := r.URL.Query().Get("format")
		if format == "" {
			s.writeJSON(w, http.StatusOK, RecipeExportResponse{Recipe: *recipe})
			return
		}
		contentType, ok := recipeContentTypes[format]
		if !ok {
			http.Error(w, fmt.Sprintf("unsupported format %q", format), http.StatusBadRequest)
			return
		}
		data, err := s.recipes.Export(name, format)
		if err != nil {
			s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case http.MethodDelete:
		if !exists {
			http.Error(w, "recipe not found", http.StatusNotFound)
			return
		}
		if err := s.recipes.DeleteRecipe(name); err != nil {
			s.writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": err.Error(),
			})
			return
		}
		s.auditRecipe(r.Context(), logging.EventRecipeDeleted, name)
		s.writeJSON(w, http.StatusOK, map[string]string{
			"status": "deleted",
		})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleRecipeRun runs a saved recipe on the request input
func (s *Server) handleRecipeRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := r.PathValue("name")
	recipe, exists := s.recipes.GetRecipe(name)
	if !exists {
		http.Error(w, "recipe not found", http.StatusNotFound)
		return
	}

	var req RecipeRunRequest
	if err := decodeJSON(w, r, &req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if req.Reverse && !recipe.Pipeline.Reversible {
		s.writeJSON(w, http.StatusUnprocessableEntity, CipherPipelineResponse{
			Error: fmt.Sprintf("recipe %s is %v", name, cipher.ErrNotReversible),
		})
		return
	}
	s.runPipeline(w, r, name, recipe.Pipeline.Operations, req.Input, req.Reverse)
}

// handleRecipeImport saves a recipe sent as JSON, YAML or CBOR (?format=)
func (s *Server) handleRecipeImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = cipher.FormatJSON
	}
	if _, ok := recipeContentTypes[format]; !ok {
		http.Error(w, fmt.Sprintf("unsupported format %q", format), http.StatusBadRequest)
		return
	}

	data, err := readBody(w, r)
	if err != nil {
		http.Error(w, "could not read body", http.StatusBadRequest)
		return
	}

	recipe, err := s.recipes.Import(data, format)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	s.auditRecipe(r.Context(), logging.EventRecipeSaved, recipe.Name)

	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "saved",
		"name":   recipe.Name,
	})
}

func (s *Server) auditRecipe(ctx context.Context, event logging.EventType, name string) {
	_ = s.audit.WithRequest(RequestID(ctx)).Emit(logging.AuditEvent{
		EventType: event,
		Decision:  logging.DecisionSuccess,
		Metadata:  map[string]any{"recipe": name},
	})
	metrics.SetRecipes(len(s.recipes.ListRecipes()))
}
