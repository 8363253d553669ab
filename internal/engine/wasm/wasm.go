// Package wasm hosts an engine compiled to WebAssembly with wazero.
//
// The module exports "memory", engine_alloc(i32) i32, engine_free(i32, i32)
// and one engine_* function per call. String arguments are passed as
// (ptr, len) pairs in the module's memory. String results come back as a
// packed i64, ptr<<32 | len, where 0 means null.
package wasm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/mwiater/aletheia/internal/engine"
	"github.com/mwiater/aletheia/internal/logging"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

const (
	exportAlloc             = "engine_alloc"
	exportFree              = "engine_free"
	exportLoadDictionary    = "engine_load_dictionary"
	exportReset             = "engine_reset"
	exportRemaining         = "engine_remaining"
	exportPattern           = "engine_pattern"
	exportApplyFeedback     = "engine_apply_feedback"
	exportIsCandidate       = "engine_is_candidate"
	exportBestGuess         = "engine_best_guess"
	exportPatternHistogram  = "engine_pattern_histogram"
	exportTopGuesses        = "engine_top_guesses"
	exportSolveGroups       = "engine_solve_groups"
	exportSpeedTest         = "engine_speed_test"
	exportAdversarialStress = "engine_adversarial_stress"
	exportSimdEnabled       = "engine_simd_enabled"
	exportSetSimdEnabled    = "engine_set_simd_enabled"
)

var _ engine.Engine = (*Engine)(nil)

// Engine is one instantiated engine module. Calls are serialized.
type Engine struct {
	mu      sync.Mutex
	ctx     context.Context
	runtime wazero.Runtime
	mod     api.Module
	mem     api.Memory
	alloc   api.Function
	free    api.Function
}

// Open reads and instantiates the module at path.
func Open(ctx context.Context, path string) (*Engine, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read engine module %q: %w", path, err)
	}
	return New(ctx, body)
}

// New instantiates an engine module from its binary.
func New(ctx context.Context, body []byte) (*Engine, error) {
	runtime := wazero.NewRuntime(ctx)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}
	compiled, err := runtime.CompileModule(ctx, body)
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("compile engine module: %w", err)
	}
	mod, err := runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName("engine").WithStartFunctions("_initialize"))
	if err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("instantiate engine module: %w", err)
	}

	e := &Engine{
		ctx:     ctx,
		runtime: runtime,
		mod:     mod,
		mem:     mod.Memory(),
		alloc:   mod.ExportedFunction(exportAlloc),
		free:    mod.ExportedFunction(exportFree),
	}
	if e.mem == nil || e.alloc == nil || e.free == nil {
		_ = runtime.Close(ctx)
		return nil, errors.New("engine module must export memory, engine_alloc and engine_free")
	}
	return e, nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runtime.Close(e.ctx)
}

// call invokes an export. Missing exports and traps are reported as errors.
func (e *Engine) call(name string, params ...uint64) ([]uint64, error) {
	fn := e.mod.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("engine export %s missing", name)
	}
	results, err := fn.Call(e.ctx, params...)
	if err != nil {
		logging.LogEvent("engine call %s failed: %v", name, err)
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return results, nil
}

// writeString copies s into module memory and returns (ptr, len).
func (e *Engine) writeString(s string) (uint32, uint32, error) {
	if len(s) == 0 {
		return 0, 0, nil
	}
	results, err := e.alloc.Call(e.ctx, api.EncodeI32(int32(len(s))))
	if err != nil {
		return 0, 0, fmt.Errorf("%s: %w", exportAlloc, err)
	}
	ptr := api.DecodeU32(results[0])
	if !e.mem.Write(ptr, []byte(s)) {
		return 0, 0, fmt.Errorf("write %d bytes at %d: out of range", len(s), ptr)
	}
	return ptr, uint32(len(s)), nil
}

func (e *Engine) release(ptr, size uint32) {
	if ptr == 0 {
		return
	}
	_, _ = e.free.Call(e.ctx, api.EncodeU32(ptr), api.EncodeU32(size))
}

// readPacked decodes a ptr<<32|len result into a string and frees it.
func (e *Engine) readPacked(packed uint64) (string, bool) {
	if packed == 0 {
		return "", false
	}
	ptr, size := uint32(packed>>32), uint32(packed)
	data, ok := e.mem.Read(ptr, size)
	if !ok {
		return "", false
	}
	out := string(data)
	e.release(ptr, size)
	return out, true
}

// callStrings writes each string argument, appends extra params, and frees
// the arguments afterwards.
func (e *Engine) callStrings(name string, args []string, extra ...uint64) ([]uint64, error) {
	params := make([]uint64, 0, len(args)*2+len(extra))
	type span struct{ ptr, size uint32 }
	spans := make([]span, 0, len(args))
	defer func() {
		for _, s := range spans {
			e.release(s.ptr, s.size)
		}
	}()
	for _, arg := range args {
		ptr, size, err := e.writeString(arg)
		if err != nil {
			return nil, err
		}
		spans = append(spans, span{ptr, size})
		params = append(params, api.EncodeU32(ptr), api.EncodeU32(size))
	}
	params = append(params, extra...)
	return e.call(name, params...)
}

// jsonCall runs a JSON-returning export. Failures become an error payload.
func (e *Engine) jsonCall(name string, args []string, extra ...uint64) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	results, err := e.callStrings(name, args, extra...)
	if err != nil {
		return errorJSON(err)
	}
	if len(results) == 0 {
		return errorJSON(fmt.Errorf("%s returned nothing", name))
	}
	out, ok := e.readPacked(results[0])
	if !ok {
		return errorJSON(fmt.Errorf("%s returned null", name))
	}
	return out
}

func errorJSON(err error) string {
	data, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: err.Error()})
	return string(data)
}

func boolParam(v bool) uint64 {
	if v {
		return api.EncodeI32(1)
	}
	return api.EncodeI32(0)
}

func (e *Engine) LoadDictionary(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _ = e.callStrings(exportLoadDictionary, []string{text})
}

func (e *Engine) ResetSession() {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _ = e.call(exportReset)
}

func (e *Engine) RemainingCandidateCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	results, err := e.call(exportRemaining)
	if err != nil || len(results) == 0 {
		return 0
	}
	return int(api.DecodeI32(results[0]))
}

func (e *Engine) ComputePattern(guess, target string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	results, err := e.callStrings(exportPattern, []string{guess, target})
	if err != nil || len(results) == 0 {
		return "", false
	}
	return e.readPacked(results[0])
}

func (e *Engine) ApplyFeedback(guess, pattern string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	results, err := e.callStrings(exportApplyFeedback, []string{guess, pattern})
	if err != nil || len(results) == 0 {
		return -1
	}
	return int(api.DecodeI32(results[0]))
}

func (e *Engine) IsCandidate(guess string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	results, err := e.callStrings(exportIsCandidate, []string{guess})
	if err != nil || len(results) == 0 {
		return false
	}
	return api.DecodeI32(results[0]) != 0
}

func (e *Engine) BestGuess(hardMode bool) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	results, err := e.call(exportBestGuess, boolParam(hardMode))
	if err != nil || len(results) == 0 {
		return "", false
	}
	return e.readPacked(results[0])
}

func (e *Engine) PatternHistogram(guess string) string {
	return e.jsonCall(exportPatternHistogram, []string{guess})
}

func (e *Engine) TopGuesses(k int, hardMode bool) string {
	return e.jsonCall(exportTopGuesses, nil, api.EncodeI32(int32(k)), boolParam(hardMode))
}

func (e *Engine) SolveGroups(wordsText string, hardMode bool, lexicalWeight float64) string {
	return e.jsonCall(exportSolveGroups, []string{wordsText}, boolParam(hardMode), api.EncodeF64(lexicalWeight))
}

func (e *Engine) SpeedTest(count int, hardMode bool) string {
	return e.jsonCall(exportSpeedTest, nil, api.EncodeI32(int32(count)), boolParam(hardMode))
}

func (e *Engine) AdversarialStress(count int, hardMode bool) string {
	return e.jsonCall(exportAdversarialStress, nil, api.EncodeI32(int32(count)), boolParam(hardMode))
}

func (e *Engine) SimdEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	results, err := e.call(exportSimdEnabled)
	if err != nil || len(results) == 0 {
		return false
	}
	return api.DecodeI32(results[0]) != 0
}

func (e *Engine) SetSimdEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _ = e.call(exportSetSimdEnabled, boolParam(enabled))
}
