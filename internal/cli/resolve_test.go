package cli

import (
	"errors"
	"testing"

	"github.com/existflow/irontodo/internal/model"
	"github.com/matryer/is"
)

func TestResolveTask(t *testing.T) {
	tasks := []model.Task{
		{ID: "3f2a9c1e-0000-4000-8000-000000000001", Text: "a"},
		{ID: "3f2b0000-0000-4000-8000-000000000002", Text: "b"},
		{ID: "1718000000000", Text: "c"},
		{ID: "17180000000001", Text: "d"},
	}

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr error
	}{
		{"full id", "3f2a9c1e-0000-4000-8000-000000000001", "a", nil},
		{"unique prefix", "3f2a", "a", nil},
		{"surrounding space", " 3f2b ", "b", nil},
		{"exact beats prefix", "1718000000000", "c", nil},
		{"ambiguous prefix", "3f2", "", ErrAmbiguousID},
		{"no match", "ffff", "", ErrTaskNotFound},
		{"empty", "  ", "", ErrTaskNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			got, err := resolveTask(tasks, tt.ref)
			if tt.wantErr != nil {
				is.True(errors.Is(err, tt.wantErr))
				return
			}
			is.NoErr(err)
			is.Equal(got.Text, tt.want)
		})
	}
}

func TestShortID(t *testing.T) {
	is := is.New(t)
	is.Equal(shortID("3f2a9c1e-0000-4000-8000-000000000001"), "3f2a9c1e")
	is.Equal(shortID("1718000000000"), "1718000000000")
	is.Equal(shortID("abc"), "abc")
}
