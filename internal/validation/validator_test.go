package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bookingForm struct {
	Date  string `json:"date" validate:"required,date"`
	Time  string `json:"time" validate:"required,clock,halfhour"`
	Phone string `json:"phone" validate:"omitempty,phone"`
}

func TestCustomTags(t *testing.T) {
	v := New()

	require.NoError(t, v.Struct(bookingForm{Date: "2026-03-02", Time: "09:30", Phone: "+880 1711 000000"}))

	err := v.Struct(bookingForm{Date: "02/03/2026", Time: "09:15", Phone: "abc"})
	require.Error(t, err)
	errs := v.ValidationErrors(err)
	require.Len(t, errs, 3)

	tags := map[string]string{}
	for _, fe := range errs {
		tags[fe.Field()] = fe.Tag()
	}
	assert.Equal(t, map[string]string{"date": "date", "time": "halfhour", "phone": "phone"}, tags)
}

func TestValidationErrorsIgnoresOtherErrors(t *testing.T) {
	v := New()
	assert.Nil(t, v.ValidationErrors(nil))
	assert.Nil(t, v.ValidationErrors(assert.AnError))
}
