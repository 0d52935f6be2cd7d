// Package cipher exposes the classical ciphers as named, chainable
// operations.
//
// # Overview
//
// Every operation implements Operation and lives in a Registry. The
// built-in operations are registered in the default registry at init:
//
//   - caesar_encrypt / caesar_decrypt: Caesar shift over a configurable alphabet
//   - rot13: Caesar with a fixed shift of 13 over the Latin alphabet
//   - bacon_encode / bacon_decode: Baconian a/b groups, version 1 or 2
//   - bacon_hide / bacon_reveal: Baconian message hidden in letter casing
//   - bacon_scatter: a/b symbols buried among random filler
//
// # Quick Start
//
//	op, _ := cipher.GetOperation("caesar_encrypt")
//	out, _ := op.Execute(ctx, []byte("Attack at dawn!"), map[string]interface{}{
//	    "shift": 3,
//	})
//	// out: []byte("Dwwdfn dw gdzq!")
//
// # Parameters
//
// Parameters arrive as map[string]interface{}, usually decoded from JSON,
// YAML or CBOR. Integers are accepted as any numeric type or as numeric
// strings; booleans as bool or strconv.ParseBool strings.
//
//	shift                  int, required by caesar_encrypt/caesar_decrypt
//	case_sensitive         bool, default true
//	include_foreign_chars  bool, default true
//	alphabet               string or list of single characters
//	version                1 or 2, default 2
//	cover                  string, required by bacon_hide
//	noise                  int, default 3 (bacon_scatter)
//	seed                   int, makes bacon_scatter deterministic
//
// # Pipelines
//
//	pipeline := &cipher.Pipeline{
//	    Operations: []cipher.OperationConfig{
//	        {Name: "caesar_encrypt", Parameters: map[string]interface{}{"shift": 7}},
//	        {Name: "bacon_encode"},
//	    },
//	    Reversible: true,
//	}
//	encoded, _ := pipeline.Execute(ctx, []byte("jinx"))
//	reverse, _ := pipeline.Reverse()
//	plain, _ := reverse.Execute(ctx, encoded)
//
// Reverse keeps each step's parameters, so the inverse Caesar step uses the
// same shift. bacon_scatter has no inverse.
//
// # Detection
//
// SmartDetector recognises Baconian streams, casing steganography and
// Caesar-shifted English, and suggests the operation and parameters that
// undo each:
//
//	results, _ := cipher.NewSmartDetector().Detect(ctx, input)
//
// # Recipes
//
// RecipeManager stores named pipelines as YAML files and can export or
// import them as JSON, YAML or CBOR.
package cipher
