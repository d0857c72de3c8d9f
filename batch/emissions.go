package batch

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Emission bundle layout, little-endian:
//
//	magic uint32, version uint32
//	idLen int32, id bytes
//	t int32, n int32, t*n float32 emissions
//	tokLen int32, token targets as int32
//	wordLen int32, per word: byteLen int32 + bytes
const (
	emissionMagic   = 0x454d4953 // "EMIS"
	emissionVersion = 1

	// transitions bundle: magic uint32, version uint32, n int32, n*n float32
	transitionsMagic = 0x5452414e // "TRAN"
	transitionsFile  = "transitions.bin"

	// upper bound on per-sample target lengths; anything larger means a
	// corrupt length field, not a real utterance
	maxTargetLen = 1 << 20
)

// WriteSample serializes one sample together with its class count.
func WriteSample(w io.Writer, s *Sample, n int) error {
	if len(s.Emissions) < s.T*n {
		return fmt.Errorf("sample %s: emissions shorter than %d×%d", s.ID, s.T, n)
	}
	for _, v := range []uint32{emissionMagic, emissionVersion} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if err := writeBytes(w, []byte(s.ID)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, [2]int32{int32(s.T), int32(n)}); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, s.Emissions[:s.T*n]); err != nil {
		return err
	}
	toks := make([]int32, len(s.TokenTarget))
	for i, t := range s.TokenTarget {
		toks[i] = int32(t)
	}
	if err := binary.Write(w, binary.LittleEndian, int32(len(toks))); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, toks); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, int32(len(s.WordTarget))); err != nil {
		return err
	}
	for _, word := range s.WordTarget {
		if err := writeBytes(w, []byte(word)); err != nil {
			return err
		}
	}
	return nil
}

// ReadSample deserializes one sample, returning it and its class count.
func ReadSample(r io.Reader) (*Sample, int, error) {
	var magic, version uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, 0, err
	}
	if magic != emissionMagic {
		return nil, 0, fmt.Errorf("bad magic %#x", magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, 0, err
	}
	if version != emissionVersion {
		return nil, 0, fmt.Errorf("unsupported bundle version %d", version)
	}

	id, err := readBytes(r)
	if err != nil {
		return nil, 0, err
	}
	var dims [2]int32
	if err := binary.Read(r, binary.LittleEndian, &dims); err != nil {
		return nil, 0, err
	}
	t, n := int(dims[0]), int(dims[1])
	if t < 0 || n <= 0 || t > maxTargetLen || n > 1<<16 {
		return nil, 0, fmt.Errorf("bad dimensions %d×%d", t, n)
	}
	s := &Sample{ID: string(id), T: t, Emissions: make([]float32, t*n)}
	if err := binary.Read(r, binary.LittleEndian, s.Emissions); err != nil {
		return nil, 0, err
	}

	var tokLen int32
	if err := binary.Read(r, binary.LittleEndian, &tokLen); err != nil {
		return nil, 0, err
	}
	if tokLen < 0 || tokLen > maxTargetLen {
		return nil, 0, fmt.Errorf("bad token target length %d", tokLen)
	}
	toks := make([]int32, tokLen)
	if err := binary.Read(r, binary.LittleEndian, toks); err != nil {
		return nil, 0, err
	}
	s.TokenTarget = make([]int, tokLen)
	for i, tok := range toks {
		s.TokenTarget[i] = int(tok)
	}

	var wordLen int32
	if err := binary.Read(r, binary.LittleEndian, &wordLen); err != nil {
		return nil, 0, err
	}
	if wordLen < 0 || wordLen > maxTargetLen {
		return nil, 0, fmt.Errorf("bad word target length %d", wordLen)
	}
	s.WordTarget = make([]string, wordLen)
	for i := range s.WordTarget {
		word, err := readBytes(r)
		if err != nil {
			return nil, 0, err
		}
		s.WordTarget[i] = string(word)
	}
	return s, n, nil
}

// WriteTransitions serializes an N×N transition matrix.
func WriteTransitions(w io.Writer, transitions []float32, n int) error {
	if len(transitions) != n*n {
		return fmt.Errorf("transition matrix has %d values, want %d×%d", len(transitions), n, n)
	}
	for _, v := range []uint32{transitionsMagic, emissionVersion} {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, int32(n)); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, transitions)
}

// ReadTransitions deserializes a transition matrix, returning it and its
// class count.
func ReadTransitions(r io.Reader) ([]float32, int, error) {
	var magic, version uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return nil, 0, err
	}
	if magic != transitionsMagic {
		return nil, 0, fmt.Errorf("bad magic %#x", magic)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, 0, err
	}
	if version != emissionVersion {
		return nil, 0, fmt.Errorf("unsupported bundle version %d", version)
	}
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, 0, err
	}
	if n <= 0 || n > 1<<16 {
		return nil, 0, fmt.Errorf("bad class count %d", n)
	}
	transitions := make([]float32, int(n)*int(n))
	if err := binary.Read(r, binary.LittleEndian, transitions); err != nil {
		return nil, 0, err
	}
	return transitions, int(n), nil
}

// LoadEmissionDir reads every .bin bundle under dir, in file-name order,
// and checks that all samples agree on the class count. A transitions.bin
// file, when present, populates the set's transition matrix.
func LoadEmissionDir(dir string) (*EmissionSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".bin") && e.Name() != transitionsFile {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	set := &EmissionSet{}
	for _, name := range names {
		path := filepath.Join(dir, name)
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		s, n, err := ReadSample(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if set.N == 0 {
			set.N = n
		} else if n != set.N {
			return nil, fmt.Errorf("%s: class count %d, set has %d", path, n, set.N)
		}
		set.Samples = append(set.Samples, *s)
	}

	path := filepath.Join(dir, transitionsFile)
	if f, err := os.Open(path); err == nil {
		transitions, n, err := ReadTransitions(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if set.N != 0 && n != set.N {
			return nil, fmt.Errorf("%s: class count %d, set has %d", path, n, set.N)
		}
		set.Transitions = transitions
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return set, nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var n int32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n < 0 || n > 1<<20 {
		return nil, fmt.Errorf("bad length %d", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}
