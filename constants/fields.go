package constants

// Target fields of the candidate profile.
const (
	FieldFirstName      = "firstName"
	FieldLastName       = "lastName"
	FieldEmail          = "email"
	FieldPhone          = "phone"
	FieldLinkedIn       = "linkedin"
	FieldStreet         = "street"
	FieldPostalCode     = "postalCode"
	FieldCity           = "city"
	FieldCanton         = "canton"
	FieldNationality    = "nationality"
	FieldBirthdate      = "birthdate"
	FieldLanguages      = "languages"
	FieldSkills         = "skills"
	FieldExperience     = "experience"
	FieldEducation      = "education"
	FieldDrivingLicense = "drivingLicense"
	FieldWorkPermit     = "workPermit"
	FieldCertificates   = "certificates"
)

// TargetFields lists every field a label may be mapped onto.
var TargetFields = []string{
	FieldFirstName, FieldLastName, FieldEmail, FieldPhone, FieldLinkedIn,
	FieldStreet, FieldPostalCode, FieldCity, FieldCanton,
	FieldNationality, FieldBirthdate, FieldLanguages, FieldSkills,
	FieldExperience, FieldEducation, FieldDrivingLicense, FieldWorkPermit, FieldCertificates,
}

// IsTargetField reports whether name is a known profile field.
func IsTargetField(name string) bool {
	for _, f := range TargetFields {
		if f == name {
			return true
		}
	}
	return false
}
