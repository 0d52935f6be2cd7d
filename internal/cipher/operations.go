package cipher

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/RowanDark/cipherkit/internal/bacon"
	"github.com/RowanDark/cipherkit/internal/caesar"
)

// Caesar Operations

// CaesarOp shifts alphabet characters by the "shift" parameter
type CaesarOp struct {
	BaseOperation
	decrypt bool
}

func (op *CaesarOp) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	shift, err := requiredIntParam(params, ParamShift)
	if err != nil {
		return nil, err
	}
	opts, err := caesarOptions(params)
	if err != nil {
		return nil, err
	}

	var out string
	if op.decrypt {
		out, err = caesar.Decrypt(string(input), shift, opts)
	} else {
		out, err = caesar.Encrypt(string(input), shift, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op.Name(), err)
	}
	return []byte(out), nil
}

// ROT13Op is the Caesar cipher with a fixed shift of 13 over the Latin
// alphabet. It is its own inverse.
type ROT13Op struct {
	BaseOperation
}

func (op *ROT13Op) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	opts, err := caesarOptions(params)
	if err != nil {
		return nil, err
	}
	opts.Alphabet = nil

	out, err := caesar.Encrypt(string(input), 13, opts)
	if err != nil {
		return nil, fmt.Errorf("rot13 failed: %w", err)
	}
	return []byte(out), nil
}

func caesarOptions(params map[string]interface{}) (caesar.Options, error) {
	opts := caesar.DefaultOptions()
	var err error
	if opts.CaseSensitive, err = boolParam(params, ParamCaseSensitive, opts.CaseSensitive); err != nil {
		return opts, err
	}
	if opts.IncludeForeignChars, err = boolParam(params, ParamIncludeForeign, opts.IncludeForeignChars); err != nil {
		return opts, err
	}
	abc, err := alphabetParam(params)
	if err != nil {
		return opts, err
	}
	if abc != nil {
		opts.Alphabet = abc
	}
	return opts, nil
}

// Bacon Operations

// BaconEncodeOp turns letters into five-symbol a/b groups
type BaconEncodeOp struct {
	BaseOperation
}

func (op *BaconEncodeOp) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	opts, err := baconOptions(params)
	if err != nil {
		return nil, err
	}
	out, err := bacon.Encode(string(input), opts)
	if err != nil {
		return nil, fmt.Errorf("bacon encode failed: %w", err)
	}
	return []byte(out), nil
}

// BaconDecodeOp turns a/b groups back into letters
type BaconDecodeOp struct {
	BaseOperation
}

func (op *BaconDecodeOp) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	opts, err := baconOptions(params)
	if err != nil {
		return nil, err
	}
	out, err := bacon.Decode(string(input), opts)
	if err != nil {
		return nil, fmt.Errorf("bacon decode failed: %w", err)
	}
	return []byte(out), nil
}

func baconOptions(params map[string]interface{}) (bacon.Options, error) {
	opts := bacon.DefaultOptions()
	var err error
	if opts.Version, err = versionParam(params); err != nil {
		return opts, err
	}
	if opts.IncludeForeignChars, err = boolParam(params, ParamIncludeForeign, opts.IncludeForeignChars); err != nil {
		return opts, err
	}
	return opts, nil
}

// BaconHideOp hides the input in the letter casing of the "cover" parameter
type BaconHideOp struct {
	BaseOperation
}

func (op *BaconHideOp) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	cover, err := requiredStringParam(params, ParamCover)
	if err != nil {
		return nil, err
	}
	v, err := versionParam(params)
	if err != nil {
		return nil, err
	}
	out, err := bacon.EncryptInText(string(input), cover, v)
	if err != nil {
		return nil, fmt.Errorf("bacon hide failed: %w", err)
	}
	return []byte(out), nil
}

// BaconRevealOp recovers a message from the letter casing of the input
type BaconRevealOp struct {
	BaseOperation
}

func (op *BaconRevealOp) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	v, err := versionParam(params)
	if err != nil {
		return nil, err
	}
	out, err := bacon.DecryptInText(string(input), v)
	if err != nil {
		return nil, fmt.Errorf("bacon reveal failed: %w", err)
	}
	return []byte(out), nil
}

// MaxNoise is the largest filler run bacon_scatter inserts before a symbol.
const MaxNoise = 16

// BaconScatterOp buries the a/b symbols of the input in random noise
type BaconScatterOp struct {
	BaseOperation
}

func (op *BaconScatterOp) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	noise, err := intParam(params, ParamNoise, 3)
	if err != nil {
		return nil, err
	}
	if noise < 0 || noise > MaxNoise {
		return nil, fmt.Errorf("%w %q: must be between 0 and %d", ErrInvalidParam, ParamNoise, MaxNoise)
	}

	var rng *rand.Rand
	if _, seeded := params[ParamSeed]; seeded {
		seed, err := intParam(params, ParamSeed, 0)
		if err != nil {
			return nil, err
		}
		rng = rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
	}
	return []byte(bacon.Scatter(string(input), noise, rng)), nil
}

// RegisterBuiltins adds the built-in classical cipher operations to r.
func RegisterBuiltins(r *Registry) error {
	caesarEncrypt := &CaesarOp{
		BaseOperation: BaseOperation{
			NameValue:        "caesar_encrypt",
			TypeValue:        OperationTypeEncrypt,
			DescriptionValue: "Shift alphabet characters forward (Caesar cipher)",
		},
	}
	caesarDecrypt := &CaesarOp{
		BaseOperation: BaseOperation{
			NameValue:        "caesar_decrypt",
			TypeValue:        OperationTypeDecrypt,
			DescriptionValue: "Shift alphabet characters back (Caesar cipher)",
		},
		decrypt: true,
	}
	caesarEncrypt.ReverseOp = caesarDecrypt
	caesarDecrypt.ReverseOp = caesarEncrypt

	rot13 := &ROT13Op{
		BaseOperation: BaseOperation{
			NameValue:        "rot13",
			TypeValue:        OperationTypeEncrypt,
			DescriptionValue: "Rotate Latin letters by 13 places",
		},
	}
	rot13.ReverseOp = rot13

	baconEncode := &BaconEncodeOp{
		BaseOperation: BaseOperation{
			NameValue:        "bacon_encode",
			TypeValue:        OperationTypeEncode,
			DescriptionValue: "Encode letters as Baconian a/b groups",
		},
	}
	baconDecode := &BaconDecodeOp{
		BaseOperation: BaseOperation{
			NameValue:        "bacon_decode",
			TypeValue:        OperationTypeDecode,
			DescriptionValue: "Decode Baconian a/b groups to letters",
		},
	}
	baconEncode.ReverseOp = baconDecode
	baconDecode.ReverseOp = baconEncode

	baconHide := &BaconHideOp{
		BaseOperation: BaseOperation{
			NameValue:        "bacon_hide",
			TypeValue:        OperationTypeHide,
			DescriptionValue: "Hide a message in the letter casing of a cover text",
		},
	}
	baconReveal := &BaconRevealOp{
		BaseOperation: BaseOperation{
			NameValue:        "bacon_reveal",
			TypeValue:        OperationTypeReveal,
			DescriptionValue: "Reveal a message hidden in letter casing",
		},
	}
	baconHide.ReverseOp = baconReveal
	baconReveal.ReverseOp = baconHide

	// Not reversible: stripping the noise is bacon_decode with
	// include_foreign_chars=false.
	baconScatter := &BaconScatterOp{
		BaseOperation: BaseOperation{
			NameValue:        "bacon_scatter",
			TypeValue:        OperationTypeObscure,
			DescriptionValue: "Scatter Baconian symbols among random noise",
		},
	}

	for _, op := range []Operation{
		caesarEncrypt, caesarDecrypt, rot13,
		baconEncode, baconDecode,
		baconHide, baconReveal,
		baconScatter,
	} {
		if err := r.Register(op); err != nil {
			return err
		}
	}
	return nil
}

// init registers all built-in operations
func init() {
	if err := RegisterBuiltins(defaultRegistry); err != nil {
		panic("cipher: " + err.Error())
	}
}
