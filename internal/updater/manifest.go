package updater

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

var (
	// ErrBadSignature is returned when a manifest does not verify against the
	// configured public key.
	ErrBadSignature = errors.New("manifest signature verification failed")
	// ErrNoBuild is returned when a release has no build for the running
	// platform.
	ErrNoBuild = errors.New("no build for this platform")
)

// Manifest lists the builds published for one release on a channel.
type Manifest struct {
	Version     string  `json:"version"`
	Channel     string  `json:"channel"`
	NotesURL    string  `json:"notes_url,omitempty"`
	PublishedAt string  `json:"published_at,omitempty"`
	Builds      []Build `json:"builds"`
}

// Build is the artifact set for one OS/architecture pair.
type Build struct {
	OS    string   `json:"os"`
	Arch  string   `json:"arch"`
	Full  Artifact `json:"full"`
	Patch *Patch   `json:"patch,omitempty"`
}

// Artifact is a complete binary.
type Artifact struct {
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
}

// Patch is a bsdiff patch from the binary of version From.
type Patch struct {
	From   string `json:"from"`
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
}

// BuildFor returns the build for goos/goarch.
func (m Manifest) BuildFor(goos, goarch string) (Build, bool) {
	for _, b := range m.Builds {
		if strings.EqualFold(b.OS, goos) && strings.EqualFold(b.Arch, goarch) {
			return b, true
		}
	}
	return Build{}, false
}

func decodeManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	if strings.TrimSpace(m.Version) == "" {
		return Manifest{}, errors.New("manifest missing version")
	}
	if len(m.Builds) == 0 {
		return Manifest{}, errors.New("manifest missing builds")
	}
	return m, nil
}

// ParsePublicKey decodes a base64 ed25519 public key.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("update public key is not configured")
	}
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode update public key: %w", err)
	}
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("update public key has length %d, want %d", len(key), ed25519.PublicKeySize)
	}
	return ed25519.PublicKey(key), nil
}

// Source serves signed manifests at <BaseURL>/<channel>/manifest.json with a
// base64 signature alongside at manifest.json.sig.
type Source struct {
	BaseURL    string
	PublicKey  ed25519.PublicKey
	HTTPClient *http.Client
	UserAgent  string
}

// Fetch downloads and verifies the manifest for channel.
func (s Source) Fetch(ctx context.Context, channel string) (Manifest, error) {
	channel, err := ParseChannel(channel)
	if err != nil {
		return Manifest{}, err
	}
	if len(s.PublicKey) != ed25519.PublicKeySize {
		return Manifest{}, errors.New("update public key is not configured")
	}
	manifestURL, err := s.manifestURL(channel)
	if err != nil {
		return Manifest{}, err
	}

	data, err := s.download(ctx, manifestURL)
	if err != nil {
		return Manifest{}, err
	}
	rawSig, err := s.download(ctx, manifestURL+".sig")
	if err != nil {
		return Manifest{}, fmt.Errorf("download manifest signature: %w", err)
	}
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(rawSig)))
	if err != nil || len(sig) != ed25519.SignatureSize {
		return Manifest{}, fmt.Errorf("%w: malformed signature", ErrBadSignature)
	}
	if !ed25519.Verify(s.PublicKey, data, sig) {
		return Manifest{}, ErrBadSignature
	}
	return decodeManifest(data)
}

func (s Source) manifestURL(channel string) (string, error) {
	base := strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	if base == "" {
		return "", errors.New("update url is not configured")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse update url: %w", err)
	}
	u.Path = path.Join(u.Path, channel, "manifest.json")
	return u.String(), nil
}

func (s Source) download(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("construct request: %w", err)
	}
	if s.UserAgent != "" {
		req.Header.Set("User-Agent", s.UserAgent)
	}
	client := s.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", target, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2<<10))
		return nil, fmt.Errorf("download %s: unexpected status %d: %s", target, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	return data, nil
}

func decodeChecksum(sum string) ([]byte, error) {
	sum = strings.TrimSpace(sum)
	if sum == "" {
		return nil, errors.New("empty checksum")
	}
	b, err := hex.DecodeString(sum)
	if err != nil {
		return nil, fmt.Errorf("decode checksum: %w", err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("checksum has %d bytes, want 32", len(b))
	}
	return b, nil
}
