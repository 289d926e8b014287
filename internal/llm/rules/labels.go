package rules

import (
	"github.com/joseph-ayodele/cv-autofill/constants"
	"github.com/joseph-ayodele/cv-autofill/internal/normalize"
)

// pseudo-fields resolved by the engine itself
const (
	fieldFullName = "_fullName"
	fieldAddress  = "_address"
)

type section int

const (
	sectionNone section = iota
	sectionPersonal
	sectionLanguages
	sectionSkills
	sectionExperience
	sectionEducation
	sectionCertificates
)

var builtinLabels = foldKeys(map[string]string{
	"Vorname":             constants.FieldFirstName,
	"First name":          constants.FieldFirstName,
	"Firstname":           constants.FieldFirstName,
	"Given name":          constants.FieldFirstName,
	"Nachname":            constants.FieldLastName,
	"Familienname":        constants.FieldLastName,
	"Last name":           constants.FieldLastName,
	"Surname":             constants.FieldLastName,
	"Name":                fieldFullName,
	"Full name":           fieldFullName,
	"E-Mail":              constants.FieldEmail,
	"Email":               constants.FieldEmail,
	"Mail":                constants.FieldEmail,
	"Telefon":             constants.FieldPhone,
	"Tel":                 constants.FieldPhone,
	"Mobile":              constants.FieldPhone,
	"Mobil":               constants.FieldPhone,
	"Natel":               constants.FieldPhone,
	"Handy":               constants.FieldPhone,
	"Phone":               constants.FieldPhone,
	"LinkedIn":            constants.FieldLinkedIn,
	"Adresse":             fieldAddress,
	"Anschrift":           fieldAddress,
	"Address":             fieldAddress,
	"Strasse":             constants.FieldStreet,
	"Street":              constants.FieldStreet,
	"PLZ":                 constants.FieldPostalCode,
	"Postleitzahl":        constants.FieldPostalCode,
	"Postal code":         constants.FieldPostalCode,
	"Zip":                 constants.FieldPostalCode,
	"Ort":                 constants.FieldCity,
	"Wohnort":             constants.FieldCity,
	"City":                constants.FieldCity,
	"Kanton":              constants.FieldCanton,
	"Canton":              constants.FieldCanton,
	"Nationalität":        constants.FieldNationality,
	"Staatsangehörigkeit": constants.FieldNationality,
	"Nationality":         constants.FieldNationality,
	"Citizenship":         constants.FieldNationality,
	"Geburtsdatum":        constants.FieldBirthdate,
	"Geboren":             constants.FieldBirthdate,
	"Jahrgang":            constants.FieldBirthdate,
	"Date of birth":       constants.FieldBirthdate,
	"Birthdate":           constants.FieldBirthdate,
	"Führerschein":        constants.FieldDrivingLicense,
	"Führerausweis":       constants.FieldDrivingLicense,
	"Driving licence":     constants.FieldDrivingLicense,
	"Driving license":     constants.FieldDrivingLicense,
	"Aufenthaltsstatus":   constants.FieldWorkPermit,
	"Arbeitsbewilligung":  constants.FieldWorkPermit,
	"Work permit":         constants.FieldWorkPermit,
	"Sprachen":            constants.FieldLanguages,
	"Languages":           constants.FieldLanguages,
	"Kenntnisse":          constants.FieldSkills,
	"Skills":              constants.FieldSkills,
	"IT-Kenntnisse":       constants.FieldSkills,
	"Zertifikate":         constants.FieldCertificates,
	"Certificates":        constants.FieldCertificates,
})

// Labels that fit several fields, most likely first.
var ambiguousLabels = foldKeysMulti(map[string][]string{
	"Ausweis":     {constants.FieldWorkPermit, constants.FieldDrivingLicense},
	"Bewilligung": {constants.FieldWorkPermit, constants.FieldDrivingLicense},
	"Heimatort":   {constants.FieldNationality, constants.FieldCity},
	"Kontakt":     {constants.FieldPhone, constants.FieldEmail},
	"Contact":     {constants.FieldPhone, constants.FieldEmail},
})

// Origin labels imply a nationality without stating it.
var originLabels = foldSet(
	"Herkunft", "Ethnie", "Ethnicity", "Origin", "Abstammung", "Herkunftsland", "Country of origin",
)

var sectionHeaders = foldKeysSection(map[string]section{
	"Persönliche Angaben":     sectionPersonal,
	"Personalien":             sectionPersonal,
	"Personal data":           sectionPersonal,
	"Personal details":        sectionPersonal,
	"Sprachen":                sectionLanguages,
	"Sprachkenntnisse":        sectionLanguages,
	"Languages":               sectionLanguages,
	"Kenntnisse":              sectionSkills,
	"IT-Kenntnisse":           sectionSkills,
	"Fähigkeiten":             sectionSkills,
	"Kompetenzen":             sectionSkills,
	"Skills":                  sectionSkills,
	"Technical skills":        sectionSkills,
	"Berufserfahrung":         sectionExperience,
	"Beruflicher Werdegang":   sectionExperience,
	"Werdegang":               sectionExperience,
	"Experience":              sectionExperience,
	"Work experience":         sectionExperience,
	"Professional experience": sectionExperience,
	"Ausbildung":              sectionEducation,
	"Bildung":                 sectionEducation,
	"Education":               sectionEducation,
	"Zertifikate":             sectionCertificates,
	"Weiterbildung":           sectionCertificates,
	"Certificates":            sectionCertificates,
	"Certifications":          sectionCertificates,
})

// headings that look like a name but are not
var documentTitles = foldSet("Curriculum Vitae", "Lebenslauf", "Resume", "Persönliche Daten", "Personal Profile")

// keyword hints for the detected type of an unplaced segment
var (
	credentialHints = []string{"ausweis", "kat", "lizenz", "licence", "license", "zertifikat", "certificate", "diplom", "diploma", "patent"}
	personalHints   = []string{"zivilstand", "familienstand", "kinder", "religion", "geschlecht", "marital", "children", "gender", "hobbys", "hobbies", "interessen"}
)

func foldKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[normalize.FoldKey(k)] = v
	}
	return out
}

func foldKeysMulti(m map[string][]string) map[string][]string {
	out := make(map[string][]string, len(m))
	for k, v := range m {
		out[normalize.FoldKey(k)] = v
	}
	return out
}

func foldKeysSection(m map[string]section) map[string]section {
	out := make(map[string]section, len(m))
	for k, v := range m {
		out[normalize.FoldKey(k)] = v
	}
	return out
}

func foldSet(items ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, s := range items {
		out[normalize.FoldKey(s)] = struct{}{}
	}
	return out
}
