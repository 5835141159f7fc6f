package weather

import "encoding/json"

// Location identifies the place a response describes.
type Location struct {
	Name      string  `json:"name"`
	Region    string  `json:"region"`
	Country   string  `json:"country"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	TzID      string  `json:"tz_id"`
	Localtime string  `json:"localtime"`
}

// DisplayName formats the location as "Name, Region, Country".
func (l Location) DisplayName() string {
	return l.Name + ", " + l.Region + ", " + l.Country
}

type Condition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
	Code int    `json:"code"`
}

// Current is the "current" section of a response.
type Current struct {
	LastUpdated string             `json:"last_updated"`
	TempC       float64            `json:"temp_c"`
	TempF       float64            `json:"temp_f"`
	FeelslikeC  float64            `json:"feelslike_c"`
	FeelslikeF  float64            `json:"feelslike_f"`
	Condition   Condition          `json:"condition"`
	Humidity    float64            `json:"humidity"`
	WindKph     float64            `json:"wind_kph"`
	WindMph     float64            `json:"wind_mph"`
	WindDir     string             `json:"wind_dir"`
	PressureMb  float64            `json:"pressure_mb"`
	VisKm       float64            `json:"vis_km"`
	VisMiles    float64            `json:"vis_miles"`
	UV          float64            `json:"uv"`
	PrecipMm    float64            `json:"precip_mm"`
	AirQuality  map[string]float64 `json:"air_quality,omitempty"`
}

// Day is the daily summary of a forecast day.
type Day struct {
	MaxtempC          float64   `json:"maxtemp_c"`
	MaxtempF          float64   `json:"maxtemp_f"`
	MintempC          float64   `json:"mintemp_c"`
	MintempF          float64   `json:"mintemp_f"`
	AvgtempC          float64   `json:"avgtemp_c"`
	AvgtempF          float64   `json:"avgtemp_f"`
	Condition         Condition `json:"condition"`
	DailyChanceOfRain float64   `json:"daily_chance_of_rain"`
	DailyChanceOfSnow float64   `json:"daily_chance_of_snow"`
	Avghumidity       float64   `json:"avghumidity"`
	MaxwindKph        float64   `json:"maxwind_kph"`
	MaxwindMph        float64   `json:"maxwind_mph"`
	TotalprecipMm     float64   `json:"totalprecip_mm"`
	AvgvisKm          float64   `json:"avgvis_km"`
	AvgvisMiles       float64   `json:"avgvis_miles"`
	UV                float64   `json:"uv"`
}

// Astro holds sun and moon times for a day.
type Astro struct {
	Sunrise          string      `json:"sunrise"`
	Sunset           string      `json:"sunset"`
	Moonrise         string      `json:"moonrise"`
	Moonset          string      `json:"moonset"`
	MoonPhase        string      `json:"moon_phase"`
	MoonIllumination json.Number `json:"moon_illumination"`
}

type ForecastDay struct {
	Date  string `json:"date"`
	Day   Day    `json:"day"`
	Astro Astro  `json:"astro"`
}

type Forecast struct {
	ForecastDay []ForecastDay `json:"forecastday"`
}

type Alert struct {
	Headline    string `json:"headline"`
	MsgType     string `json:"msgtype"`
	Severity    string `json:"severity"`
	Urgency     string `json:"urgency"`
	Areas       string `json:"areas"`
	Category    string `json:"category"`
	Certainty   string `json:"certainty"`
	Event       string `json:"event"`
	Note        string `json:"note"`
	Effective   string `json:"effective"`
	Expires     string `json:"expires"`
	Desc        string `json:"desc"`
	Instruction string `json:"instruction"`
}

type Alerts struct {
	Alert []Alert `json:"alert"`
}

// CurrentResponse is the body of current.json.
type CurrentResponse struct {
	Location *Location `json:"location"`
	Current  *Current  `json:"current"`
}

// ForecastResponse is the body of forecast.json.
type ForecastResponse struct {
	Location *Location `json:"location"`
	Current  *Current  `json:"current"`
	Forecast *Forecast `json:"forecast"`
	Alerts   *Alerts   `json:"alerts"`
}

// AstronomyResponse is the body of astronomy.json.
type AstronomyResponse struct {
	Location  *Location `json:"location"`
	Astronomy *struct {
		Astro *Astro `json:"astro"`
	} `json:"astronomy"`
}

// Operation results
type (
	CurrentWeather struct {
		Location        string             `json:"location"`
		TemperatureC    float64            `json:"temperature_c"`
		TemperatureF    float64            `json:"temperature_f"`
		FeelsLikeC      float64            `json:"feels_like_c"`
		FeelsLikeF      float64            `json:"feels_like_f"`
		Condition       string             `json:"condition"`
		Humidity        float64            `json:"humidity"`
		WindKph         float64            `json:"wind_kph"`
		WindMph         float64            `json:"wind_mph"`
		WindDir         string             `json:"wind_dir"`
		PressureMb      float64            `json:"pressure_mb"`
		VisibilityKm    float64            `json:"visibility_km"`
		VisibilityMiles float64            `json:"visibility_miles"`
		UVIndex         float64            `json:"uv_index"`
		PrecipitationMm float64            `json:"precipitation_mm"`
		LastUpdated     string             `json:"last_updated"`
		AirQuality      map[string]float64 `json:"air_quality,omitempty"`
	}

	DailyForecast struct {
		Date               string  `json:"date"`
		MaxTempC           float64 `json:"max_temp_c"`
		MaxTempF           float64 `json:"max_temp_f"`
		MinTempC           float64 `json:"min_temp_c"`
		MinTempF           float64 `json:"min_temp_f"`
		AvgTempC           float64 `json:"avg_temp_c"`
		AvgTempF           float64 `json:"avg_temp_f"`
		Condition          string  `json:"condition"`
		ChanceOfRain       float64 `json:"chance_of_rain"`
		ChanceOfSnow       float64 `json:"chance_of_snow"`
		AvgHumidity        float64 `json:"avg_humidity"`
		MaxWindKph         float64 `json:"max_wind_kph"`
		MaxWindMph         float64 `json:"max_wind_mph"`
		TotalPrecipMm      float64 `json:"total_precip_mm"`
		AvgVisibilityKm    float64 `json:"avg_visibility_km"`
		AvgVisibilityMiles float64 `json:"avg_visibility_miles"`
		UVIndex            float64 `json:"uv_index"`
	}

	WeatherForecast struct {
		Location     string          `json:"location"`
		ForecastDays int             `json:"forecast_days"`
		Forecast     []DailyForecast `json:"forecast"`
	}

	AstronomyData struct {
		Location         string      `json:"location"`
		Date             string      `json:"date"`
		Sunrise          string      `json:"sunrise"`
		Sunset           string      `json:"sunset"`
		Moonrise         string      `json:"moonrise"`
		Moonset          string      `json:"moonset"`
		MoonPhase        string      `json:"moon_phase"`
		MoonIllumination json.Number `json:"moon_illumination"`
	}

	WeatherAlerts struct {
		Location    string  `json:"location"`
		AlertsCount int     `json:"alerts_count"`
		Alerts      []Alert `json:"alerts"`
	}
)
