package services

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Round phases. A round always moves forward: giving-clue → guessing →
// (back to giving-clue, or stealing) → resolved.
type RoundPhase string

const (
	PhaseGivingClue RoundPhase = "giving-clue"
	PhaseGuessing   RoundPhase = "guessing"
	PhaseStealing   RoundPhase = "stealing"
)

const (
	maxClueLength = 30
	// Number of leading characters shared with the secret word that gets a
	// clue rejected as a derivative.
	cluePrefixGuard = 4
	// After this many clues the active team's failure hands the word to the
	// other teams.
	maxCluesBeforeSteal = 3
)

// Round is the per-turn state. It is created when a turn begins and dropped
// when the turn resolves; all mutation happens under the owning Room's lock.
type Round struct {
	Word            string
	Category        string
	Clues           []string
	ClueCount       int
	Phase           RoundPhase
	TimeLeft        int
	ActiveTeamIndex int
	GiverID         string

	resolved bool
}

func newRound(entry WordEntry, activeTeam int, giverID string, seconds int) *Round {
	return &Round{
		Word:            entry.Word,
		Category:        entry.Category,
		Clues:           []string{},
		Phase:           PhaseGivingClue,
		TimeLeft:        seconds,
		ActiveTeamIndex: activeTeam,
		GiverID:         giverID,
	}
}

// stripAccents removes combining marks after NFD decomposition, so that
// "café" and "cafe" normalize to the same string.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases and strips diacritics for answer comparison.
func Normalize(s string) string {
	out, _, err := transform.String(stripAccents, strings.TrimSpace(s))
	if err != nil {
		out = strings.TrimSpace(s)
	}
	return strings.ToLower(out)
}

// AnswersMatch compares a guess against the secret word, case- and
// accent-insensitively.
func AnswersMatch(answer, secret string) bool {
	return answer != "" && Normalize(answer) == Normalize(secret)
}

// ValidateClue applies the clue rules. The returned error carries the reason
// shown to the giver; state is never touched here.
func ValidateClue(clue, secret string) error {
	trimmed := strings.TrimSpace(clue)
	if trimmed == "" {
		return errors.New("Indice invalide")
	}
	if strings.ContainsFunc(trimmed, unicode.IsSpace) {
		return errors.New("Un seul mot autorisé !")
	}
	if Normalize(trimmed) == Normalize(secret) {
		return errors.New("Tu ne peux pas donner le mot lui-même !")
	}
	// Derivative-word guard: reject clues whose lowercase form shares a
	// 4-character prefix with the secret, in either direction.
	lowerClue := strings.ToLower(trimmed)
	lowerSecret := strings.ToLower(secret)
	if utf8.RuneCountInString(lowerClue) > cluePrefixGuard-1 &&
		utf8.RuneCountInString(lowerSecret) > cluePrefixGuard-1 {
		root := firstRunes(lowerSecret, cluePrefixGuard)
		cluePrefix := firstRunes(lowerClue, cluePrefixGuard)
		if strings.HasPrefix(lowerClue, root) || strings.HasPrefix(lowerSecret, cluePrefix) {
			return errors.New("Mot trop proche du mot secret !")
		}
	}

	if utf8.RuneCountInString(trimmed) > maxClueLength {
		return errors.New("Indice trop long !")
	}
	return nil
}

func firstRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
