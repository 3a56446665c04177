package tts

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Voice is a catalog entry for a selectable synthetic voice.
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Language    string `json:"language,omitempty"`
	Description string `json:"description,omitempty"`
}

var (
	// ErrNoVoices is returned when there is nothing to choose from.
	ErrNoVoices = errors.New("no voices available")

	// ErrNotANumber rejects selection input that is not an integer.
	ErrNotANumber = errors.New("selection is not a number")

	// ErrChoiceOutOfRange rejects an integer outside 1..len(voices).
	ErrChoiceOutOfRange = errors.New("selection out of range")
)

// RetryMessage returns the line shown to the user after a rejected
// selection.
func RetryMessage(err error) string {
	if errors.Is(err, ErrNotANumber) {
		return "Please enter a valid number."
	}
	return "Invalid choice. Please try again."
}

// ParseSelection validates one line of user input against a list of n
// voices and returns the zero-based index it selects.
func ParseSelection(raw string, n int) (int, error) {
	choice, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, ErrNotANumber
	}
	if choice < 1 || choice > n {
		return 0, ErrChoiceOutOfRange
	}
	return choice - 1, nil
}

// SelectVoice lists voices on out with 1-based indices and reads choices
// from in until one is valid, returning the chosen voice ID. It fails only
// when voices is empty or in is exhausted.
func SelectVoice(in io.Reader, out io.Writer, voices []Voice) (string, error) {
	if len(voices) == 0 {
		return "", ErrNoVoices
	}

	fmt.Fprintln(out, "Available voices:")
	for i, v := range voices {
		fmt.Fprintf(out, "%d. %s\n", i+1, v.Name)
	}

	r := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "Select a voice number: ")
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return "", fmt.Errorf("tts: read voice selection: %w", err)
		}
		idx, perr := ParseSelection(line, len(voices))
		if perr != nil {
			fmt.Fprintln(out, RetryMessage(perr))
			continue
		}
		return voices[idx].ID, nil
	}
}
