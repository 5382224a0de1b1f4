package fins

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// Data memory stores every word big-endian. Decoders take word indexes into a
// buffer returned by ReadWords, not PLC addresses.

// DecodeWord reads the signed word at wordIndex. With swapBytes the two bytes
// are read in the opposite order.
func DecodeWord(buffer []byte, wordIndex int, swapBytes bool) (int16, error) {
	if err := checkWord(buffer, wordIndex, "wordIndex"); err != nil {
		return 0, err
	}
	w := buffer[wordIndex*2 : wordIndex*2+2]
	if swapBytes {
		return int16(binary.LittleEndian.Uint16(w)), nil
	}
	return int16(binary.BigEndian.Uint16(w)), nil
}

// DecodeBool reports whether the word at wordIndex equals 1.
func DecodeBool(buffer []byte, wordIndex int) (bool, error) {
	v, err := DecodeWord(buffer, wordIndex, false)
	if err != nil {
		return false, err
	}
	return v == 1, nil
}

// DecodeFloat32 assembles an IEEE-754 single from two words. The high word
// carries the sign and exponent; each word is big-endian. Controllers usually
// store the low half at the lower address, so callers pass (buf, n+1, n).
func DecodeFloat32(buffer []byte, highWordIndex, lowWordIndex int) (float32, error) {
	if err := checkWord(buffer, highWordIndex, "highWordIndex"); err != nil {
		return 0, err
	}
	if err := checkWord(buffer, lowWordIndex, "lowWordIndex"); err != nil {
		return 0, err
	}
	high, low := highWordIndex*2, lowWordIndex*2
	raw := [4]byte{buffer[low+1], buffer[low], buffer[high+1], buffer[high]}
	return math.Float32frombits(binary.LittleEndian.Uint32(raw[:])), nil
}

// EncodeFloat32 is the inverse of DecodeFloat32 for two adjacent words: it
// returns four bytes holding the low word first, then the high word.
func EncodeFloat32(v float32) []byte {
	bits := math.Float32bits(v)
	return EncodeWords(uint16(bits), uint16(bits>>16))
}

// DecodeText decodes words startWordIndex..endWordIndex (inclusive) as ASCII,
// two characters per word. Everything outside 0x20-0x7E is dropped.
func DecodeText(buffer []byte, startWordIndex, endWordIndex int, swapBytes bool) (string, error) {
	if endWordIndex < startWordIndex {
		return "", &ArgumentError{Arg: "range", Reason: fmt.Sprintf("end word %d is before start word %d", endWordIndex, startWordIndex)}
	}
	if err := checkWord(buffer, startWordIndex, "startWordIndex"); err != nil {
		return "", err
	}
	if err := checkWord(buffer, endWordIndex, "endWordIndex"); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.Grow((endWordIndex - startWordIndex + 1) * 2)
	for i := startWordIndex; i <= endWordIndex; i++ {
		hi, lo := buffer[i*2], buffer[i*2+1]
		if swapBytes {
			hi, lo = lo, hi
		}
		for _, b := range [2]byte{hi, lo} {
			if b >= 0x20 && b <= 0x7E {
				sb.WriteByte(b)
			}
		}
	}
	return strings.TrimRight(sb.String(), "\x00"), nil
}

// EncodeWords packs values big-endian, two bytes each, in order.
func EncodeWords(values ...uint16) []byte {
	bts := make([]byte, 2*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint16(bts[i*2:i*2+2], v)
	}
	return bts
}

// EncodeText prepares text for the window startAddress..endAddress
// (inclusive). The text is truncated to the window, padded with one NUL when
// its length is odd, and with swapBytes each byte pair is exchanged. The
// returned payload only covers the text; WriteText clears the rest of the
// window.
func EncodeText(startAddress, endAddress uint16, text string, swapBytes bool) ([]byte, error) {
	if text == "" {
		return nil, &ArgumentError{Arg: "text", Reason: "must not be empty"}
	}
	words, err := windowWords(startAddress, endAddress)
	if err != nil {
		return nil, err
	}

	data := asciiBytes(text)
	if maxLength := words * 2; len(data) > maxLength {
		data = data[:maxLength]
	}
	if len(data)%2 == 1 {
		data = append(data, 0x00)
	}
	if swapBytes {
		swapPairs(data)
	}
	return data, nil
}

// windowWords returns the number of words in the inclusive range.
func windowWords(startAddress, endAddress uint16) (int, error) {
	if endAddress < startAddress {
		return 0, &ArgumentError{Arg: "range", Reason: fmt.Sprintf("end address %d must be greater than or equal to start address %d", endAddress, startAddress)}
	}
	words := int(endAddress-startAddress) + 1
	if words > 0xFFFF {
		return 0, &ArgumentError{Arg: "range", Reason: fmt.Sprintf("%d words exceed a single frame", words)}
	}
	return words, nil
}

// swapPairs exchanges the bytes of every complete pair; a trailing odd byte
// stays where it is.
func swapPairs(data []byte) {
	for i := 0; i+1 < len(data); i += 2 {
		data[i], data[i+1] = data[i+1], data[i]
	}
}

func asciiBytes(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0x7F {
			r = '?'
		}
		out = append(out, byte(r))
	}
	return out
}

func checkWord(buffer []byte, wordIndex int, name string) error {
	if wordIndex < 0 || wordIndex*2+2 > len(buffer) {
		return &ArgumentError{Arg: name, Reason: fmt.Sprintf("word %d is outside a %d-byte buffer", wordIndex, len(buffer))}
	}
	return nil
}
