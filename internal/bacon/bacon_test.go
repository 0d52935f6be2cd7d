package bacon_test

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RowanDark/cipherkit/internal/alphabet"
	"github.com/RowanDark/cipherkit/internal/bacon"
)

const (
	v1Alphabet = "aaaaaaaaabaaabaaaabbaabaaaababaabbaaabbbabaaaabaaaabaabababaababbabbaaabbababbbaabbbbbaaaabaaabbaababaabbbaabbbabaabababbabbababbb"
	v2Alphabet = "aaaaaaaaabaaabaaaabbaabaaaababaabbaaabbbabaaaabaabababaababbabbaaabbababbbaabbbbbaaaabaaabbaababaabbbabaabababbabbababbbbbaaabbaab"

	fox = "The quick brown fox jumps over the lazy dog"
)

func withVersion(v bacon.Version, foreign bool) bacon.Options {
	return bacon.Options{Version: v, IncludeForeignChars: foreign}
}

func TestTableFor(t *testing.T) {
	v1, err := bacon.TableFor(bacon.V1)
	require.NoError(t, err)
	assert.Equal(t, 24, v1.Codes())

	i, _ := v1.Code('i')
	j, _ := v1.Code('J')
	u, _ := v1.Code('u')
	v, _ := v1.Code('V')
	assert.Equal(t, i, j)
	assert.Equal(t, u, v)

	v2, err := bacon.TableFor(bacon.V2)
	require.NoError(t, err)
	assert.Equal(t, 26, v2.Codes())
	assert.Equal(t, bacon.V2, v2.Version())

	for _, bad := range []bacon.Version{0, 3, -1} {
		_, err := bacon.TableFor(bad)
		assert.ErrorIs(t, err, bacon.ErrUnknownVersion)
	}
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		opts bacon.Options
		want string
	}{
		{"v1 alphabet", alphabet.LatinLower, withVersion(bacon.V1, true), v1Alphabet},
		{"v1 keeps spaces", "abc jinx vulture", withVersion(bacon.V1, true),
			"aaaaaaaaabaaaba abaaaabaaaabbaababab baabbbaabbabababaababaabbbaaaaaabaa"},
		{"v1 drops spaces", "abc jinx vulture", withVersion(bacon.V1, false),
			"aaaaaaaaabaaabaabaaaabaaaabbaabababbaabbbaabbabababaababaabbbaaaaaabaa"},
		{"v2 alphabet", alphabet.LatinLower, withVersion(bacon.V2, true), v2Alphabet},
		{"default is v2", alphabet.LatinLower, bacon.DefaultOptions(), v2Alphabet},
		{"v2 keeps spaces", "abc jinx vulture", withVersion(bacon.V2, true),
			"aaaaaaaaabaaaba abaababaaaabbabbabbb bababbabaaababbbaabbbabaabaaabaabaa"},
		{"v2 drops spaces", "abc jinx vulture", withVersion(bacon.V2, false),
			"aaaaaaaaabaaabaabaababaaaabbabbabbbbababbabaaababbbaabbbabaabaaabaabaa"},
		{"upper case and punctuation", "Abc!", bacon.DefaultOptions(), "aaaaaaaaabaaaba!"},
		{"punctuation dropped", "Abc!", withVersion(0, false), "aaaaaaaaabaaaba"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bacon.Encode(tt.in, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncode_UnknownVersion(t *testing.T) {
	_, err := bacon.Encode("abc", withVersion(3, true))
	require.ErrorIs(t, err, bacon.ErrUnknownVersion)
	assert.Contains(t, err.Error(), "3")
	assert.Contains(t, err.Error(), "1 or 2")

	_, err = bacon.Decode("aaaaa", withVersion(7, true))
	assert.ErrorIs(t, err, bacon.ErrUnknownVersion)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		opts bacon.Options
		want string
	}{
		{"v1 collapses j and v", v1Alphabet, withVersion(bacon.V1, true), "abcdefghiiklmnopqrstuuwxyz"},
		{"v1 spaces dropped", "aaaaaaaaabaaaba abaaaabaaaabbaababab baabbbaabbabababaababaabbbaaaaaabaa",
			withVersion(bacon.V1, false), "abciinxuulture"},
		{"v1 spaces kept", "aaaaaaaaabaaaba abaaaabaaaabbaababab baabbbaabbabababaababaabbbaaaaaabaa",
			withVersion(bacon.V1, true), "abc iinx uulture"},
		{"v2 exact", v2Alphabet, bacon.DefaultOptions(), alphabet.LatinLower},
		{"v2 spaces dropped", "aaaaaaaaabaaaba abaababaaaabbabbabbb bababbabaaababbbaabbbabaabaaabaabaa",
			withVersion(bacon.V2, false), "abcjinxvulture"},
		{"upper-case symbols", "AAAAAaaaab", bacon.DefaultOptions(), "ab"},
		{"trailing partial window", "aaaaaaaab", bacon.DefaultOptions(), "a"},
		{"v1 unassigned code", "bbbbb", withVersion(bacon.V1, true), ""},
		{"v1 noisy stream",
			"gFaX8_Akl2:aog4Acz$B6olaeD)Awqµ#aK.OrnaSAJ_ax;kPa*q]_aB=jtn?Aöw€. MdairhGlkBC\"=hzBVaÜv%iTmebxaO7hl3bnID+Fb6wkL(a§ö;a_s#7iA|pZbgp2~asoTaöZ8vaqaK/n4rBUep=a03_a!EdlvA71a,3BürbqsxA gA3_lu(1pevB+anh4TB#a6jrEK_9l?öB9€_bUqAv.a=öbBM)R?e55[B1&Äa7AB_9rb6a91A#fBa3d_Ak",
			withVersion(bacon.V1, false), "baconiinxuue"},
		{"v2 noisy stream",
			"maD&aFA=a9b5K1ä:a-6rah;AyqvaoK*_a(g4dZuaalAÖbaabMeBbaG3abUBazbaQ8bAP=aQbafbWaA7o]kccanDabKµ923bk#FAbbd_ablBqb71fGb90aBa9oa8bAkb2aBp3aaBf4a6a7hc2jz62ipfr",
			withVersion(bacon.V2, false), "baconjinxuve"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bacon.Decode(tt.in, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEncryptInText(t *testing.T) {
	got, err := bacon.EncryptInText("jinx uve", fox, bacon.V1)
	require.NoError(t, err)
	assert.Equal(t, "tHe quiCk broWN foX jUmPS ovER The LAzy Dog", got)

	got, err = bacon.EncryptInText("jinx uve", fox, bacon.V2)
	require.NoError(t, err)
	assert.Equal(t, "tHe qUiCk broWN fOX jUMPS oVer ThE lAzy Dog", got)

	// Letters past the hidden pattern keep their case.
	got, err = bacon.EncryptInText("abc", "Find what you love and let it kill you.", bacon.DefaultVersion)
	require.NoError(t, err)
	assert.Equal(t, "find what yOu loVe and let it kill you.", got)

	got, err = bacon.EncryptInText("a", "XXXXX YYY", bacon.V2)
	require.NoError(t, err)
	assert.Equal(t, "xxxxx YYY", got)
}

func TestEncryptInText_InsufficientCover(t *testing.T) {
	for _, v := range []bacon.Version{bacon.V1, bacon.V2} {
		got, err := bacon.EncryptInText("abc", "some short text", v)
		assert.Empty(t, got)
		require.ErrorIs(t, err, bacon.ErrInsufficientCoverText)
		assert.Contains(t, err.Error(), "15")
		assert.Contains(t, err.Error(), "provide more letters")
	}

	_, err := bacon.EncryptInText("abc", fox, 9)
	assert.ErrorIs(t, err, bacon.ErrUnknownVersion)
}

func TestDecryptInText(t *testing.T) {
	got, err := bacon.DecryptInText("tHe quiCk broWN foX jUmPS ovER The LAzy Dog", bacon.V1)
	require.NoError(t, err)
	assert.Equal(t, "iinxuue", got)

	got, err = bacon.DecryptInText("tHe qUiCk broWN fOX jUMPS oVer ThE lAzy Dog", bacon.V2)
	require.NoError(t, err)
	assert.Equal(t, "jinxuve", got)

	// Unmarked trailing letters decode as a's.
	got, err = bacon.DecryptInText("find what yOu loVe and let it kill you.", bacon.DefaultVersion)
	require.NoError(t, err)
	assert.Equal(t, "abcaaa", got)
}

func TestStegoRoundTrip(t *testing.T) {
	cover := strings.Repeat("Lorem ipsum dolor sit amet, consectetur adipiscing elit. ", 8)
	secrets := []string{"attack at dawn", "Meet me by the old Oak", "xyz"}

	for _, v := range []bacon.Version{bacon.V1, bacon.V2} {
		for _, secret := range secrets {
			marked, err := bacon.EncryptInText(secret, cover, v)
			require.NoError(t, err)

			want, err := bacon.Decode(mustEncode(t, secret, v), withVersion(v, false))
			require.NoError(t, err)

			got, err := bacon.DecryptInText(marked, v)
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(got, want), "version %d: %q does not start with %q", v, got, want)
		}
	}
}

func TestStegoRoundTrip_ExactCover(t *testing.T) {
	secret := "hidden"
	cover := strings.Repeat("x", 5*len(secret))
	marked, err := bacon.EncryptInText(secret, cover, bacon.V2)
	require.NoError(t, err)

	got, err := bacon.DecryptInText(marked, bacon.V2)
	require.NoError(t, err)
	assert.Equal(t, secret, got)
}

func TestPattern(t *testing.T) {
	p := bacon.PatternFromCodes("ab ba!")
	assert.Equal(t, bacon.Pattern{false, true, true, false}, p)

	p = bacon.ExtractPattern("aB 1c-D eFgh")
	assert.Equal(t, bacon.Pattern{false, true, false, true, false, true, false, false}, p)
	assert.Equal(t, "ababa", p.Codes())
}

func TestScatter(t *testing.T) {
	stream := mustEncode(t, "bacon jinx", bacon.V2)
	r := rand.New(rand.NewPCG(42, 7))

	noisy := bacon.Scatter(stream, 4, r)
	assert.Greater(t, len(noisy), len(stream))

	got, err := bacon.Decode(noisy, withVersion(bacon.V2, false))
	require.NoError(t, err)
	assert.Equal(t, "baconjinx", got)

	assert.Equal(t, stream, bacon.Scatter(stream, 0, r))
}

func mustEncode(t *testing.T, s string, v bacon.Version) string {
	t.Helper()
	out, err := bacon.Encode(s, withVersion(v, false))
	require.NoError(t, err)
	return out
}
