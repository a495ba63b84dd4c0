package flows

import (
	"fmt"
	"strings"

	"github.com/romavesna/bausteinbot/storage"
	"github.com/romavesna/bausteinbot/training"
)

// User-facing German texts. The engine treats them as opaque templates.
const (
	textGreeting = "Hallo! 👋 Ich helfe dir, Sprachbausteine zu üben.\n" +
		"Starte mit /start_training oder sieh dir deine Ergebnisse mit /my_statistics an."
	textGreetingEditor = "Hallo! 👋 Du bist als Editor angemeldet.\n" +
		"Mit /add_example legst du neue Übungen an, /list_examples zeigt den Bestand.\n" +
		"Training wie gewohnt mit /start_training."

	textNoStatistics = "Du hast noch keine Statistik. Starte ein Training mit /start_training!"
	textFeedback     = "Fragen oder Vorschläge? Schreib den Entwicklern: @roma_vesna 💬"

	textTransientFailure = "Etwas ist schiefgelaufen. Bitte versuch es gleich noch einmal."
	textStaleAction      = "Diese Schaltfläche ist nicht mehr aktiv."
	textSessionAborted   = "Die Sitzung wurde beendet. Starte neu mit /start_training."

	textAskSentence = "Neue Übung 📝\n" +
		"Schick mir den Satz mit der Lücke als " + BlankMarker + ".\n" +
		"Beispiel: Ich warte " + BlankMarker + " den Bus."
	textSentenceNeedsBlank = "Der Satz braucht genau die Lücke " + BlankMarker + ". Bitte noch einmal."
	textAskCorrect         = "Wie lautet die richtige Antwort für die Lücke?"
	textAskExplanation     = "Gib eine kurze Erklärung, warum diese Antwort richtig ist."
	textAskIncorrect       = "Nenne mindestens zwei falsche Antworten, durch Kommas getrennt."
	textIncorrectTooFew    = "Ich brauche mindestens zwei falsche Antworten, durch Kommas getrennt."
	textAskCategory        = "Wähle die Kategorie der Übung:"
	textAskLevels          = "Wähle ein Niveau (oder zwei benachbarte) und bestätige mit „Fertig“:"
	textLevelsEmpty        = "Wähle mindestens ein Niveau aus."
	textLevelsTooMany      = "Höchstens zwei Niveaus sind erlaubt."
	textLevelsNotAdjacent  = "Zwei Niveaus müssen benachbart sein (z. B. B1 und B2)."
	textSaved              = "Übung gespeichert ✅"
	textCancelled          = "Abgebrochen. Die Übung wurde nicht gespeichert."

	textAskCodes   = "Schick mir die neuen Zugangscodes, durch Kommas getrennt."
	textCodesEmpty = "Ich habe keine Codes erkannt. Bitte durch Kommas getrennt senden."

	textChooseLevel    = "Wähle dein Niveau:"
	textChooseCount    = "Wie viele Aufgaben möchtest du üben?"
	textNoLevels       = "Für kein Niveau gibt es genug Übungen. Schau später wieder vorbei!"
	textAnswerCorrect  = "✅ Richtig!"
	textAnswerWrong    = "❌ Falsch. Richtige Antwort: %s"
	textRestartHint    = "Noch eine Runde? /start_training"
	textSettingsTitle  = "⚙️ Einstellungen"
	textSettingsSaved  = "Gespeichert ✅"
	textChooseAnswers  = "Wie viele Antwortmöglichkeiten pro Frage?"
	textChooseLength   = "Wie viele Aufgaben pro Training?"
	textChooseSetLevel = "Welches Niveau möchtest du standardmäßig üben?"
	textChooseTime     = "Wann soll dein tägliches Training sein?"
)

// BlankMarker is the literal that marks the gap inside a sentence template.
const BlankMarker = "[x]"

func formatQuestion(index, total int, sentence string) string {
	gap := strings.Replace(sentence, BlankMarker, "____", 1)
	return fmt.Sprintf("%d/%d. 📝 %s", index+1, total, gap)
}

func formatFeedback(correct bool, correctText, explanation string) string {
	var b strings.Builder
	if correct {
		b.WriteString(textAnswerCorrect)
	} else {
		fmt.Fprintf(&b, textAnswerWrong, correctText)
	}
	if explanation != "" {
		b.WriteString("\n💡 ")
		b.WriteString(explanation)
	}
	return b.String()
}

func formatSummary(correct, total int) string {
	percent := training.ComputePercent(correct, total)
	return fmt.Sprintf("Fertig! 🎉 Ergebnis: %d von %d richtig (%d%%).\n%s",
		correct, total, percent, textRestartHint)
}

func formatStatistics(stats []storage.CategoryStat) string {
	var b strings.Builder
	b.WriteString("📊 Deine Statistik:\n")
	pairs := make([][2]int, 0, len(stats))
	for _, s := range stats {
		percent := training.ComputePercent(s.Correct, s.Total)
		fmt.Fprintf(&b, "\n%s — %d%% (%d/%d)", s.CategoryName, percent, s.Correct, s.Total)
		pairs = append(pairs, [2]int{s.Correct, s.Total})
	}
	correct, total := training.Aggregate(pairs)
	fmt.Fprintf(&b, "\n\nGesamt: %d%% (%d/%d)",
		training.ComputePercent(correct, total), correct, total)
	return b.String()
}

func formatPreview(draft storage.ExerciseDraft, categoryName string, levelNames []string) string {
	var b strings.Builder
	b.WriteString("Vorschau 🔍\n\n")
	fmt.Fprintf(&b, "Satz: %s\n", draft.Sentence)
	fmt.Fprintf(&b, "Richtig: %s\n", draft.Correct)
	fmt.Fprintf(&b, "Falsch: %s\n", strings.Join(draft.Incorrect, ", "))
	fmt.Fprintf(&b, "Erklärung: %s\n", draft.Explanation)
	fmt.Fprintf(&b, "Kategorie: %s\n", categoryName)
	fmt.Fprintf(&b, "Niveau: %s", strings.Join(levelNames, ", "))
	return b.String()
}

func formatExerciseDetail(d storage.ExerciseDetail) string {
	levelNames := make([]string, 0, len(d.Levels))
	for _, l := range d.Levels {
		levelNames = append(levelNames, l.Name)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📝 %s\n\n", d.Sentence)
	fmt.Fprintf(&b, "Richtig: %s\n", d.Correct)
	fmt.Fprintf(&b, "Falsch: %s\n", strings.Join(d.Incorrect, ", "))
	fmt.Fprintf(&b, "Erklärung: %s\n", d.Explanation)
	fmt.Fprintf(&b, "Kategorie: %s\n", d.CategoryName)
	fmt.Fprintf(&b, "Niveau: %s", strings.Join(levelNames, ", "))
	return b.String()
}

// FeedbackText is the static developer-contact message for /feedback.
func FeedbackText() string { return textFeedback }

// StaleActionText is shown when a button no longer matches an active dialogue.
func StaleActionText() string { return textStaleAction }

// TransientFailureText asks the user to retry after a store failure.
func TransientFailureText() string { return textTransientFailure }
