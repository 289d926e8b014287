package common

import (
	"golang.org/x/text/language"
)

const (
	LocaleDE = "de"
	LocaleEN = "en"
)

// first entry is the fallback when nothing matches
var supportedLocales = []language.Tag{language.German, language.English}

var localeMatcher = language.NewMatcher(supportedLocales)

var userMessages = map[string]map[string]string{
	LocaleDE: {
		CodeUnsupportedType:     "Dieser Dateityp wird nicht unterstützt. Erlaubt sind PDF, DOCX, PNG und JPG.",
		CodeFileTooLarge:        "Die Datei ist zu gross.",
		CodeSignatureMismatch:   "Der Dateiinhalt passt nicht zur Dateiendung.",
		CodeTooManyPages:        "Das Dokument hat zu viele Seiten.",
		CodeInvalidPayload:      "Die Anfrage ist unvollständig oder ungültig.",
		CodeAlreadyConfirmed:    "Dieser Auftrag wurde bereits bestätigt.",
		CodeRateLimited:         "Zu viele Uploads. Bitte versuchen Sie es später erneut.",
		CodeDailyQuota:          "Das tägliche Upload-Limit ist erreicht.",
		CodeTenantQuota:         "Das tägliche Limit Ihrer Organisation ist erreicht.",
		CodeOCRFailed:           "Der Text des Dokuments konnte nicht erkannt werden.",
		CodeEngineDisabled:      "Die automatische Auswertung ist derzeit deaktiviert.",
		CodeEngineNotConfigured: "Die automatische Auswertung ist nicht eingerichtet.",
		CodeEngineFailed:        "Das Dokument konnte nicht ausgewertet werden. Bitte erfassen Sie die Daten manuell.",
		CodeDocumentUnreadable:  "Das Dokument konnte nicht gelesen werden.",
		CodeNotFound:            "Der Auftrag wurde nicht gefunden.",
		CodeUnauthorized:        "Keine Berechtigung.",
		CodePersistenceFailed:   "Die Daten konnten nicht gespeichert werden.",
		CodeInternal:            "Ein unerwarteter Fehler ist aufgetreten.",
	},
	LocaleEN: {
		CodeUnsupportedType:     "This file type is not supported. Allowed are PDF, DOCX, PNG and JPG.",
		CodeFileTooLarge:        "The file is too large.",
		CodeSignatureMismatch:   "The file content does not match its extension.",
		CodeTooManyPages:        "The document has too many pages.",
		CodeInvalidPayload:      "The request is incomplete or invalid.",
		CodeAlreadyConfirmed:    "This job has already been confirmed.",
		CodeRateLimited:         "Too many uploads. Please try again later.",
		CodeDailyQuota:          "The daily upload limit has been reached.",
		CodeTenantQuota:         "Your organization's daily limit has been reached.",
		CodeOCRFailed:           "The document text could not be recognized.",
		CodeEngineDisabled:      "Automatic extraction is currently disabled.",
		CodeEngineNotConfigured: "Automatic extraction is not set up.",
		CodeEngineFailed:        "The document could not be analyzed. Please enter the data manually.",
		CodeDocumentUnreadable:  "The document could not be read.",
		CodeNotFound:            "The job was not found.",
		CodeUnauthorized:        "Not authorized.",
		CodePersistenceFailed:   "The data could not be saved.",
		CodeInternal:            "An unexpected error occurred.",
	},
}

// ResolveLocale picks a supported locale from an Accept-Language header,
// falling back to fallback (or German) when the header is empty or unparsable.
func ResolveLocale(acceptLanguage, fallback string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		if fallback == "" {
			return LocaleDE
		}
		t, perr := language.Parse(fallback)
		if perr != nil {
			return LocaleDE
		}
		tags = []language.Tag{t}
	}
	_, idx, _ := localeMatcher.Match(tags...)
	base, _ := supportedLocales[idx].Base()
	return base.String()
}

// UserMessage returns the short localized message for an error code.
// Raw causes never reach this text.
func UserMessage(code, locale string) string {
	msgs, ok := userMessages[locale]
	if !ok {
		msgs = userMessages[LocaleDE]
	}
	if m, ok := msgs[code]; ok {
		return m
	}
	return msgs[CodeInternal]
}
