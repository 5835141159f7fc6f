package weather

import (
	"context"
	"fmt"
	"time"

	"github.com/mattt/weather-mcp/registry"
)

const (
	minForecastDays     = 1
	maxForecastDays     = 10
	defaultForecastDays = 3
	dateLayout          = "2006-01-02"
)

var locationParam = registry.Param{
	Type:        registry.TypeString,
	Description: "City name, coordinates, or location query",
	Required:    true,
}

// Tools binds the weather operations to a client.
type Tools struct {
	client *Client
	now    func() time.Time
}

// NewTools returns the weather operations backed by client. now supplies the
// default date for astronomy lookups; nil means time.Now.
func NewTools(client *Client, now func() time.Time) *Tools {
	if now == nil {
		now = time.Now
	}
	return &Tools{client: client, now: now}
}

// Operations returns the weather operations in catalog order.
func (t *Tools) Operations() []registry.Operation {
	return []registry.Operation{
		{
			Descriptor: registry.Descriptor{
				Name:            "get_current_weather",
				Description:     "Get the current weather for a given location, including temperature, humidity, wind and air quality.",
				ParameterSchema: registry.ParamSchema{"location": locationParam},
			},
			Handler: t.currentWeather,
		},
		{
			Descriptor: registry.Descriptor{
				Name:        "get_weather_forecast",
				Description: "Get the weather forecast for a given location.",
				ParameterSchema: registry.ParamSchema{
					"location": locationParam,
					"days": {
						Type:        registry.TypeInteger,
						Description: "Number of forecast days (1-10)",
						Default:     defaultForecastDays,
					},
				},
			},
			Handler: t.forecast,
		},
		{
			Descriptor: registry.Descriptor{
				Name:        "get_astronomy_data",
				Description: "Get astronomy data (sunrise, sunset, moon phases) for a location.",
				ParameterSchema: registry.ParamSchema{
					"location": locationParam,
					"date": {
						Type:        registry.TypeString,
						Description: "Date in YYYY-MM-DD format (defaults to today)",
					},
				},
			},
			Handler: t.astronomy,
		},
		{
			Descriptor: registry.Descriptor{
				Name:            "get_weather_alerts",
				Description:     "Get active weather alerts and warnings for a location.",
				ParameterSchema: registry.ParamSchema{"location": locationParam},
			},
			Handler: t.alerts,
		},
	}
}

// Register adds every operation not rejected by skip to reg.
func (t *Tools) Register(reg *registry.Registry, skip func(name string) bool) error {
	for _, op := range t.Operations() {
		if skip != nil && skip(op.Name) {
			continue
		}
		if err := reg.Register(op); err != nil {
			return fmt.Errorf("error registering %s: %w", op.Name, err)
		}
	}
	return nil
}

func (t *Tools) currentWeather(ctx context.Context, args registry.Args) (any, error) {
	resp, err := t.client.Current(ctx, args.String("location"))
	if err != nil {
		return nil, fmt.Errorf("error fetching current weather: %w", err)
	}

	cur := resp.Current
	return CurrentWeather{
		Location:        resp.Location.DisplayName(),
		TemperatureC:    cur.TempC,
		TemperatureF:    cur.TempF,
		FeelsLikeC:      cur.FeelslikeC,
		FeelsLikeF:      cur.FeelslikeF,
		Condition:       cur.Condition.Text,
		Humidity:        cur.Humidity,
		WindKph:         cur.WindKph,
		WindMph:         cur.WindMph,
		WindDir:         cur.WindDir,
		PressureMb:      cur.PressureMb,
		VisibilityKm:    cur.VisKm,
		VisibilityMiles: cur.VisMiles,
		UVIndex:         cur.UV,
		PrecipitationMm: cur.PrecipMm,
		LastUpdated:     cur.LastUpdated,
		AirQuality:      cur.AirQuality,
	}, nil
}

func (t *Tools) forecast(ctx context.Context, args registry.Args) (any, error) {
	days, ok := args.Int("days")
	if !ok {
		days = defaultForecastDays
	}
	days = min(max(days, minForecastDays), maxForecastDays)

	resp, err := t.client.Forecast(ctx, args.String("location"), days, false)
	if err != nil {
		return nil, fmt.Errorf("error fetching forecast: %w", err)
	}

	result := WeatherForecast{
		Location:     resp.Location.DisplayName(),
		ForecastDays: days,
		Forecast:     make([]DailyForecast, 0, len(resp.Forecast.ForecastDay)),
	}
	for _, fd := range resp.Forecast.ForecastDay {
		d := fd.Day
		result.Forecast = append(result.Forecast, DailyForecast{
			Date:               fd.Date,
			MaxTempC:           d.MaxtempC,
			MaxTempF:           d.MaxtempF,
			MinTempC:           d.MintempC,
			MinTempF:           d.MintempF,
			AvgTempC:           d.AvgtempC,
			AvgTempF:           d.AvgtempF,
			Condition:          d.Condition.Text,
			ChanceOfRain:       d.DailyChanceOfRain,
			ChanceOfSnow:       d.DailyChanceOfSnow,
			AvgHumidity:        d.Avghumidity,
			MaxWindKph:         d.MaxwindKph,
			MaxWindMph:         d.MaxwindMph,
			TotalPrecipMm:      d.TotalprecipMm,
			AvgVisibilityKm:    d.AvgvisKm,
			AvgVisibilityMiles: d.AvgvisMiles,
			UVIndex:            d.UV,
		})
	}
	return result, nil
}

func (t *Tools) astronomy(ctx context.Context, args registry.Args) (any, error) {
	date := args.String("date")
	if date == "" {
		date = t.now().Format(dateLayout)
	} else if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
	}

	resp, err := t.client.Astronomy(ctx, args.String("location"), date)
	if err != nil {
		return nil, fmt.Errorf("error fetching astronomy data: %w", err)
	}

	astro := resp.Astronomy.Astro
	return AstronomyData{
		Location:         resp.Location.DisplayName(),
		Date:             date,
		Sunrise:          astro.Sunrise,
		Sunset:           astro.Sunset,
		Moonrise:         astro.Moonrise,
		Moonset:          astro.Moonset,
		MoonPhase:        astro.MoonPhase,
		MoonIllumination: astro.MoonIllumination,
	}, nil
}

func (t *Tools) alerts(ctx context.Context, args registry.Args) (any, error) {
	resp, err := t.client.Forecast(ctx, args.String("location"), 1, true)
	if err != nil {
		return nil, fmt.Errorf("error fetching weather alerts: %w", err)
	}

	alerts := []Alert{}
	if resp.Alerts != nil {
		alerts = append(alerts, resp.Alerts.Alert...)
	}
	return WeatherAlerts{
		Location:    resp.Location.DisplayName(),
		AlertsCount: len(alerts),
		Alerts:      alerts,
	}, nil
}
