package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoHandler(_ context.Context, args Args) (any, error) {
	return map[string]any(args), nil
}

func forecastOperation() Operation {
	return Operation{
		Descriptor: Descriptor{
			Name:        "get_weather_forecast",
			Description: "Get the weather forecast for a location",
			ParameterSchema: ParamSchema{
				"location": {Type: TypeString, Description: "City name", Required: true},
				"days":     {Type: TypeInteger, Description: "Number of days", Default: 3},
			},
		},
		Handler: echoHandler,
	}
}

func TestRegistry_Register(t *testing.T) {
	t.Run("duplicate keeps first", func(t *testing.T) {
		reg := New()
		first := forecastOperation()
		require.NoError(t, reg.Register(first))

		second := forecastOperation()
		second.Description = "replacement"
		err := reg.Register(second)
		assert.ErrorIs(t, err, ErrDuplicateName)

		op, err := reg.Lookup("get_weather_forecast")
		require.NoError(t, err)
		assert.Equal(t, "Get the weather forecast for a location", op.Description)
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("rejects invalid operations", func(t *testing.T) {
		reg := New()
		assert.ErrorIs(t, reg.Register(Operation{Handler: echoHandler}), ErrInvalidOperation)
		assert.ErrorIs(t, reg.Register(Operation{Descriptor: Descriptor{Name: "x"}}), ErrInvalidOperation)

		bad := forecastOperation()
		bad.ParameterSchema = ParamSchema{"when": {Type: "date"}}
		assert.ErrorIs(t, reg.Register(bad), ErrInvalidOperation)
		assert.Equal(t, 0, reg.Len())
	})

	t.Run("nil schema means no parameters", func(t *testing.T) {
		reg := New()
		require.NoError(t, reg.Register(Operation{Descriptor: Descriptor{Name: "ping"}, Handler: echoHandler}))

		_, err := reg.Validate("ping", Args{"extra": 1})
		assert.ErrorIs(t, err, ErrUnknownParameter)
	})
}

func TestRegistry_Lookup(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(forecastOperation()))

	_, err := reg.Lookup("get_tide_tables")
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestRegistry_Order(t *testing.T) {
	reg := New()
	names := []string{"zeta", "alpha", "mu"}
	for _, name := range names {
		require.NoError(t, reg.Register(Operation{Descriptor: Descriptor{Name: name}, Handler: echoHandler}))
	}

	var got []string
	for _, d := range reg.Descriptors() {
		got = append(got, d.Name)
	}
	assert.Equal(t, names, got)

	// All is restartable and stops early when asked to.
	for range 2 {
		var seen []string
		for op := range reg.All() {
			seen = append(seen, op.Name)
			if len(seen) == 2 {
				break
			}
		}
		assert.Equal(t, names[:2], seen)
	}
}

func TestRegistry_Validate(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(forecastOperation()))

	tests := []struct {
		name      string
		args      Args
		wantErr   error
		wantParam string
		want      Args
	}{
		{
			name: "applies defaults",
			args: Args{"location": "Paris"},
			want: Args{"location": "Paris", "days": 3},
		},
		{
			name: "keeps supplied values",
			args: Args{"location": "Paris", "days": float64(5)},
			want: Args{"location": "Paris", "days": float64(5)},
		},
		{
			name:      "missing required",
			args:      Args{},
			wantErr:   ErrMissingParameter,
			wantParam: "location",
		},
		{
			name:      "nil args missing required",
			args:      nil,
			wantErr:   ErrMissingParameter,
			wantParam: "location",
		},
		{
			name:      "wrong type",
			args:      Args{"location": 12},
			wantErr:   ErrTypeMismatch,
			wantParam: "location",
		},
		{
			name:      "fractional integer",
			args:      Args{"location": "Paris", "days": 2.5},
			wantErr:   ErrTypeMismatch,
			wantParam: "days",
		},
		{
			name:      "unknown parameter",
			args:      Args{"location": "Paris", "units": "metric"},
			wantErr:   ErrUnknownParameter,
			wantParam: "units",
		},
		{
			name:      "missing wins over unknown",
			args:      Args{"units": "metric"},
			wantErr:   ErrMissingParameter,
			wantParam: "location",
		},
		{
			name:      "type mismatch wins over unknown",
			args:      Args{"location": true, "units": "metric"},
			wantErr:   ErrTypeMismatch,
			wantParam: "location",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reg.Validate("get_weather_forecast", tt.args)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				var perr *ParamError
				require.True(t, errors.As(err, &perr))
				assert.Equal(t, tt.wantParam, perr.Param)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("does not mutate input", func(t *testing.T) {
		args := Args{"location": "Paris"}
		_, err := reg.Validate("get_weather_forecast", args)
		require.NoError(t, err)
		assert.False(t, args.Has("days"))
	})

	t.Run("unknown operation", func(t *testing.T) {
		_, err := reg.Validate("nope", Args{})
		assert.ErrorIs(t, err, ErrUnknownOperation)
	})
}

func TestRegistry_ValidateThenCall(t *testing.T) {
	reg := New()
	require.NoError(t, reg.Register(forecastOperation()))

	op, err := reg.Lookup("get_weather_forecast")
	require.NoError(t, err)
	args, err := reg.Validate("get_weather_forecast", Args{"location": "Oslo"})
	require.NoError(t, err)

	result, err := op.Handler(context.Background(), args)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"location": "Oslo", "days": 3}, result)

	_, err = reg.Validate("get_weather_forecast", Args{})
	assert.ErrorIs(t, err, ErrMissingParameter)
}

func TestDescriptor_JSON(t *testing.T) {
	data, err := json.Marshal(forecastOperation().Descriptor)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"name": "get_weather_forecast",
		"description": "Get the weather forecast for a location",
		"parameter_schema": {
			"location": {"type": "string", "description": "City name", "required": true},
			"days": {"type": "integer", "description": "Number of days", "default": 3}
		}
	}`, string(data))
}

func TestParamSchema_Document(t *testing.T) {
	doc := forecastOperation().ParameterSchema.Document()
	assert.Equal(t, "object", doc["type"])
	assert.Equal(t, false, doc["additionalProperties"])
	assert.Equal(t, []string{"location"}, doc["required"])

	empty := ParamSchema{}.Document()
	assert.NotContains(t, empty, "required")
}

func TestArgs(t *testing.T) {
	args := Args{
		"location": "Lima",
		"days":     float64(4),
		"ratio":    0.5,
		"alerts":   true,
		"count":    json.Number("12"),
	}

	assert.True(t, args.Has("location"))
	assert.False(t, args.Has("date"))
	assert.Equal(t, "Lima", args.String("location"))
	assert.Equal(t, "", args.String("date"))

	n, ok := args.Int("days")
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	n, ok = args.Int("count")
	assert.True(t, ok)
	assert.Equal(t, 12, n)

	_, ok = args.Int("ratio")
	assert.False(t, ok)

	f, ok := args.Float("ratio")
	assert.True(t, ok)
	assert.Equal(t, 0.5, f)

	b, ok := args.Bool("alerts")
	assert.True(t, ok)
	assert.True(t, b)
}
