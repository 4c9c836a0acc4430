package locale

import "github.com/nicksnyder/go-i18n/v2/i18n"

// Access and session
var (
	LoginRequired      = &i18n.Message{ID: "loginRequired", Other: "Login required."}
	AdminRequired      = &i18n.Message{ID: "adminRequired", Other: "Admin access required."}
	IdleLoggedOut      = &i18n.Message{ID: "idleLoggedOut", Other: "Logged out due to inactivity."}
	LoginSuccess       = &i18n.Message{ID: "loginSuccess", Other: "Login successful!"}
	InvalidCredentials = &i18n.Message{ID: "invalidCredentials", Other: "Invalid username or password."}
	TooManyAttempts    = &i18n.Message{ID: "tooManyAttempts", Other: "Too many login attempts. Try again later."}
	LoggedOut          = &i18n.Message{ID: "loggedOut", Other: "Logged out."}
)

// Accounts
var (
	CredentialsRequired = &i18n.Message{ID: "credentialsRequired", Other: "Username and password required."}
	UsernameTaken       = &i18n.Message{ID: "usernameTaken", Other: "Username already exists."}
	UserRegistered      = &i18n.Message{ID: "userRegistered", Other: "User registered successfully!"}
	DoctorDeleted       = &i18n.Message{ID: "doctorDeleted", Other: "Doctor account deleted."}
	DoctorNotFound      = &i18n.Message{ID: "doctorNotFound", Other: "Doctor not found."}
	PasswordRequired    = &i18n.Message{ID: "passwordRequired", Other: "Password required."}
	PasswordUpdated     = &i18n.Message{ID: "passwordUpdated", Other: "Password updated."}
)

// Patients
var (
	FieldsRequired  = &i18n.Message{ID: "fieldsRequired", Other: "All fields are required."}
	AgeNotNumber    = &i18n.Message{ID: "ageNotNumber", Other: "Age must be a number."}
	AgeNotPositive  = &i18n.Message{ID: "ageNotPositive", Other: "Age must be a positive number."}
	FieldsTooLong   = &i18n.Message{ID: "fieldsTooLong", Other: "Name and condition must be under 100 characters."}
	PatientAdded    = &i18n.Message{ID: "patientAdded", Other: "Patient added."}
	PatientUpdated  = &i18n.Message{ID: "patientUpdated", Other: "Patient updated successfully!"}
	PatientDeleted  = &i18n.Message{ID: "patientDeleted", Other: "Patient deleted."}
	PatientNotFound = &i18n.Message{ID: "patientNotFound", Other: "Patient not found."}
	ServerError     = &i18n.Message{ID: "serverError", Other: "Something went wrong. Please try again."}
)
