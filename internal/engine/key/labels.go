package key

import "fmt"

// standardNames holds the trailing-'m'-free standard name per pitch class
// (spec §3: 0=C ... 11=B).
var standardNames = [12]string{"C", "C#", "D", "Eb", "E", "F", "F#", "G", "Ab", "A", "Bb", "B"}

// majorCamelotNumber maps a major-key pitch class to its Camelot wheel
// number (spec §4.3/§9, e.g. C-major=8B).
var majorCamelotNumber = [12]int{8, 3, 10, 5, 12, 7, 2, 9, 4, 11, 6, 1}

// StandardName renders the conventional key name, e.g. "Am" or "C".
func StandardName(pitchClass int, isMinor bool) string {
	name := standardNames[norm(pitchClass)]
	if isMinor {
		return name + "m"
	}
	return name
}

// CamelotOf derives the Camelot wheel notation (e.g. "8A", "8B"). Minor
// keys take the number of their relative major (root a minor third
// below, so pitch class p is relative minor of major pitch class p+3).
func CamelotOf(pitchClass int, isMinor bool) string {
	pc := norm(pitchClass)
	letter := "B"
	number := majorCamelotNumber[pc]
	if isMinor {
		letter = "A"
		number = majorCamelotNumber[norm(pc+3)]
	}
	return fmt.Sprintf("%d%s", number, letter)
}

// ParseCamelot reverses CamelotOf, recovering (pitchClass, isMinor).
func ParseCamelot(camelot string) (pitchClass int, isMinor bool, err error) {
	if len(camelot) < 2 {
		return 0, false, fmt.Errorf("key: malformed camelot notation %q", camelot)
	}
	letter := camelot[len(camelot)-1]
	var number int
	if _, err := fmt.Sscanf(camelot[:len(camelot)-1], "%d", &number); err != nil {
		return 0, false, fmt.Errorf("key: malformed camelot notation %q", camelot)
	}
	for pc := 0; pc < 12; pc++ {
		if majorCamelotNumber[pc] != number {
			continue
		}
		switch letter {
		case 'B':
			return pc, false, nil
		case 'A':
			// pc is the major root sharing this number; the minor key
			// built from it (per CamelotOf) has root pc-3.
			return norm(pc - 3), true, nil
		}
	}
	return 0, false, fmt.Errorf("key: unknown camelot notation %q", camelot)
}

// OpenKeyFunc derives Open-Key notation (e.g. "1d", "1m"). Exposed as a
// replaceable variable per the spec's open question: the source used
// the same number table for major and minor keys (likely a bug), kept
// here as-is pending an externally confirmed correct mapping.
var OpenKeyFunc = func(pitchClass int, isMinor bool) string {
	pc := norm(pitchClass)
	letter := "d"
	if isMinor {
		letter = "m"
	}
	return fmt.Sprintf("%d%s", majorCamelotNumber[pc], letter)
}

func norm(pc int) int {
	pc %= 12
	if pc < 0 {
		pc += 12
	}
	return pc
}
