package services

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"geotrack_live/models"
)

const (
	// StaleAfter позиция старше этого считается устаревшей, устройство offline
	StaleAfter = 30 * time.Minute

	// IdleSpeedKnots порог скорости для idle. Сравнивается со скоростью в узлах без
	// перевода в км/ч, хотя на экране скорость всегда в км/ч. Порог оставлен как есть,
	// иначе изменится классификация.
	IdleSpeedKnots = 5.0
)

var knotsToKmh = decimal.RequireFromString("1.852")

// DeriveStatus вычисляет статус устройства по его последней позиции.
// Порядок проверок важен: устаревание важнее зажигания и скорости.
func DeriveStatus(device models.Device, position *models.Position, now time.Time) models.DeviceStatus {
	if position == nil || device.Status == models.StatusOffline {
		return models.StatusOffline
	}

	if now.Sub(position.ServerTime) > StaleAfter {
		return models.StatusOffline
	}

	// Только явный false, отсутствие атрибута не дает idle
	if ignition, ok := position.Attributes.Get("ignition"); ok && ignition == false && position.Speed < IdleSpeedKnots {
		return models.StatusIdle
	}

	return models.StatusOnline
}

// FormatSpeed переводит узлы в км/ч: "18.5 km/h"
func FormatSpeed(knots float64) string {
	if !isFinite(knots) {
		return formatNonFinite(knots) + " km/h"
	}
	return decimal.NewFromFloat(knots).Mul(knotsToKmh).StringFixed(1) + " km/h"
}

// SpeedKmhRounded скорость в км/ч, округленная до целого (список устройств)
func SpeedKmhRounded(knots float64) int64 {
	return int64(math.Floor(knots*1.852 + 0.5))
}

// FormatCoordinates "27.717200, 85.324000"
func FormatCoordinates(lat, lng float64) string {
	return toFixed(lat, 6) + ", " + toFixed(lng, 6)
}

// FormatAttributes переименовывает известные атрибуты в подписи и добавляет единицы.
// Неизвестные ключи переносятся без изменений, порядок сохраняется.
func FormatAttributes(attrs models.Attributes) models.Attributes {
	var formatted models.Attributes
	for _, key := range attrs.Keys() {
		value, _ := attrs.Get(key)
		switch key {
		case "fuel", "fuelLevel":
			formatted.Set("Fuel Level", displayString(value)+"%")
		case "batteryLevel":
			formatted.Set("Battery", displayString(value)+"%")
		case "temperature":
			formatted.Set("Temperature", displayString(value)+"°C")
		case "ignition":
			formatted.Set("Ignition", choose(truthy(value), "ON", "OFF"))
		case "motion":
			formatted.Set("Motion", choose(truthy(value), "Moving", "Stopped"))
		case "blocked":
			formatted.Set("Status", choose(truthy(value), "Blocked", "Active"))
		default:
			formatted.Set(key, value)
		}
	}
	return formatted
}

// mediaKeys ключи атрибутов с медиа, в порядке приоритета
var mediaKeys = []string{"image", "photo", "video", "media"}

// ResolveMediaURL строит ссылку на фото или видео из атрибутов позиции.
// positionID == 0 означает, что позиция не указана.
func ResolveMediaURL(baseURL string, attrs models.Attributes, positionID int) (string, bool) {
	for _, key := range mediaKeys {
		value, ok := attrs.Get(key)
		if !ok || !truthy(value) {
			continue
		}
		return resolveURL(baseURL, value, positionID), true
	}
	return "", false
}

func resolveURL(baseURL string, value interface{}, positionID int) string {
	if n, ok := asNumber(value); ok {
		return baseURL + "/media/" + displayString(n)
	}

	raw := displayString(value)
	switch {
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	case strings.HasPrefix(raw, "/api/media/"):
		return baseURL + raw
	case positionID != 0 && strings.Contains(raw, "positions"):
		return fmt.Sprintf("%s/api/media/positions/%d", baseURL, positionID)
	default:
		return baseURL + "/api/media/" + raw
	}
}

// toFixed форматирует число с фиксированным количеством знаков после запятой так же,
// как Number.prototype.toFixed: округляется точное двоичное значение, ровно половина
// округляется вверх по модулю, знак сохраняется ("-0.000000" для -5e-7).
func toFixed(v float64, places int) string {
	if !isFinite(v) {
		return formatNonFinite(v)
	}

	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	scaled := new(big.Rat).SetFloat64(v)
	scaled.Mul(scaled, new(big.Rat).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(places)), nil)))
	scaled.Add(scaled, big.NewRat(1, 2))
	digits := new(big.Int).Quo(scaled.Num(), scaled.Denom()).String()

	if places == 0 {
		return sign + digits
	}
	if len(digits) <= places {
		digits = strings.Repeat("0", places-len(digits)+1) + digits
	}
	return sign + digits[:len(digits)-places] + "." + digits[len(digits)-places:]
}

// displayString текстовое представление значения атрибута в том виде, в котором его показывает интерфейс
func displayString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	}
	if n, ok := asNumber(value); ok {
		if !isFinite(n) {
			return formatNonFinite(n)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprint(value)
}

// truthy false, 0, "", null и NaN считаются ложью
func truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	}
	if n, ok := asNumber(value); ok {
		return n != 0 && !math.IsNaN(n)
	}
	return true
}

// asNumber числовое значение атрибута. JSON дает float64, остальные типы встречаются
// в атрибутах, собранных в коде.
func asNumber(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func choose(cond bool, yes, no string) string {
	if cond {
		return yes
	}
	return no
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func formatNonFinite(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case v > 0:
		return "Infinity"
	default:
		return "-Infinity"
	}
}
