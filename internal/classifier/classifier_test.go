// internal/classifier/classifier_test.go
package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/portal-sentry/api/schemas"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		signals schemas.RawSignals
		want    schemas.RunResult
	}{
		{
			name:    "fields never found fails regardless of other signals",
			signals: schemas.RawSignals{FieldsFound: false, SubmittedOK: true, FinalURL: "https://portal.example/dashboard"},
			want:    schemas.ResultFail,
		},
		{
			name:    "password field still present fails",
			signals: schemas.RawSignals{FieldsFound: true, SubmittedOK: true, FinalURL: "https://portal.example/dashboard", PasswordFieldPresent: true},
			want:    schemas.ResultFail,
		},
		{
			name:    "error marker present fails",
			signals: schemas.RawSignals{FieldsFound: true, SubmittedOK: true, FinalURL: "https://portal.example/home", ErrorMarkerPresent: true},
			want:    schemas.ResultFail,
		},
		{
			name:    "dashboard keyword in final URL succeeds",
			signals: schemas.RawSignals{FieldsFound: true, SubmittedOK: true, FinalURL: "https://portal.example/dashboard"},
			want:    schemas.ResultSuccess,
		},
		{
			name:    "marker matching is case-insensitive",
			signals: schemas.RawSignals{FieldsFound: true, SubmittedOK: true, FinalURL: "https://portal.example/DASHBOARD"},
			want:    schemas.ResultSuccess,
		},
		{
			name:    "logout keyword in page content succeeds",
			signals: schemas.RawSignals{FieldsFound: true, SubmittedOK: true, FinalURL: "https://portal.example/app", PageContent: "Welcome back. Logout"},
			want:    schemas.ResultSuccess,
		},
		{
			name:    "navigated off login page without keywords succeeds",
			signals: schemas.RawSignals{FieldsFound: true, SubmittedOK: true, FinalURL: "https://portal.example/app/home"},
			want:    schemas.ResultSuccess,
		},
		{
			name:    "still on login page without markers fails",
			signals: schemas.RawSignals{FieldsFound: true, SubmittedOK: true, FinalURL: "https://portal.example/v2/vp_interface/login"},
			want:    schemas.ResultFail,
		},
		{
			name:    "negative markers outrank positive keywords",
			signals: schemas.RawSignals{FieldsFound: true, SubmittedOK: true, FinalURL: "https://portal.example/dashboard", PasswordFieldPresent: true},
			want:    schemas.ResultFail,
		},
		{
			name:    "no evidence at all fails",
			signals: schemas.RawSignals{FieldsFound: true},
			want:    schemas.ResultFail,
		},
		{
			name:    "submit never dispatched and blank final URL fails",
			signals: schemas.RawSignals{FieldsFound: true, SubmittedOK: false, FinalURL: ""},
			want:    schemas.ResultFail,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, Classify(tc.signals))
		})
	}
}
