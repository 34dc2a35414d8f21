package datasets

import (
	"bufio"
	"compress/gzip"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/pkg/errors"
)

// Session files are gzip streams holding one JSON header line followed by
// the samples as little-endian float32, channel-major. The header carries a
// sha256 of the payload so a truncated or bit-rotted cache file is rejected
// instead of silently training on garbage.

const rawMagic = "eegraw1"

type rawHeader struct {
	Magic      string    `json:"magic"`
	Subject    int       `json:"subject"`
	Session    string    `json:"session"`
	SFreq      float64   `json:"sfreq"`
	Channels   []Channel `json:"channels"`
	Events     []Event   `json:"events"`
	NumSamples int       `json:"num_samples"`
	Digest     string    `json:"sha256"`
}

// WriteRaw stores a session at path in the cache file format.
func WriteRaw(path string, r *Raw) error {
	payload := make([]byte, 0, len(r.Channels)*r.NumSamples()*4)
	var buf [4]byte
	for _, ch := range r.Data {
		for _, v := range ch {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(float32(v)))
			payload = append(payload, buf[:]...)
		}
	}
	sum := sha256.Sum256(payload)

	hdr := rawHeader{
		Magic:      rawMagic,
		Subject:    r.Subject,
		Session:    r.Session,
		SFreq:      r.SFreq,
		Channels:   r.Channels,
		Events:     r.Events,
		NumSamples: r.NumSamples(),
		Digest:     hex.EncodeToString(sum[:]),
	}
	hdrBytes, err := json.Marshal(hdr)
	if err != nil {
		return errors.Wrap(err, "datasets: encode header")
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "datasets: create session file")
	}
	defer file.Close()

	zw := gzip.NewWriter(file)
	if _, err := zw.Write(append(hdrBytes, '\n')); err != nil {
		return errors.Wrap(err, "datasets: write header")
	}
	if _, err := zw.Write(payload); err != nil {
		return errors.Wrap(err, "datasets: write payload")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "datasets: flush session file")
	}
	return file.Sync()
}

// ReadRaw loads a session from a cache file written by WriteRaw.
func ReadRaw(path string) (*Raw, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "datasets: open session file")
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, errors.Wrapf(err, "datasets: %s is not a session file", path)
	}
	defer zr.Close()

	br := bufio.NewReader(zr)
	hdrLine, err := br.ReadBytes('\n')
	if err != nil {
		return nil, errors.Wrapf(err, "datasets: %s: truncated header", path)
	}
	var hdr rawHeader
	if err := json.Unmarshal(hdrLine, &hdr); err != nil {
		return nil, errors.Wrapf(err, "datasets: %s: bad header", path)
	}
	if hdr.Magic != rawMagic {
		return nil, errors.Errorf("datasets: %s: unknown magic %q", path, hdr.Magic)
	}

	payload := make([]byte, len(hdr.Channels)*hdr.NumSamples*4)
	if _, err := io.ReadFull(br, payload); err != nil {
		return nil, errors.Wrapf(err, "datasets: %s: truncated payload", path)
	}
	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != hdr.Digest {
		return nil, errors.Errorf("datasets: %s: payload digest mismatch", path)
	}

	r := &Raw{
		Subject:  hdr.Subject,
		Session:  hdr.Session,
		SFreq:    hdr.SFreq,
		Channels: hdr.Channels,
		Events:   hdr.Events,
		Data:     make([][]float64, len(hdr.Channels)),
	}
	for c := range r.Data {
		ch := make([]float64, hdr.NumSamples)
		base := c * hdr.NumSamples * 4
		for i := range ch {
			bits := binary.LittleEndian.Uint32(payload[base+i*4:])
			ch[i] = float64(math.Float32frombits(bits))
		}
		r.Data[c] = ch
	}
	return r, nil
}
