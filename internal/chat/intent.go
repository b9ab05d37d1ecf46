package chat

import (
	"strings"

	"github.com/ashureev/smartkissan/internal/domain"
)

// Category is the topic a farmer's message is about.
type Category string

const (
	CategoryWeather Category = "weather"
	CategoryCrop    Category = "crop"
	CategoryMarket  Category = "market"
	CategoryPest    Category = "pest"
	CategoryGeneral Category = "general"
)

// MessageType maps the category onto the transcript rendering hint.
func (c Category) MessageType() domain.MessageType {
	switch c {
	case CategoryWeather:
		return domain.TypeWeather
	case CategoryCrop:
		return domain.TypeCrop
	case CategoryMarket:
		return domain.TypeMarket
	default:
		return domain.TypeText
	}
}

// SyntheticType is the rendering hint of an offline reply. The weather
// answer without a location only asks for one, so it renders as plain text.
func SyntheticType(c Category, hasLocation bool) domain.MessageType {
	if c == CategoryWeather && !hasLocation {
		return domain.TypeText
	}
	return c.MessageType()
}

type keywordSet struct {
	category Category
	keywords []string
}

// vocabulary is checked in order; the first category with a matching keyword wins.
// Keywords are lowercase and matched as substrings, so stems like "irrigat"
// cover every inflection. A leading space anchors a keyword to a word start
// (" rain" must not match "grain").
var vocabulary = []keywordSet{
	{CategoryWeather, []string{
		"weather", " rain", "temperature", "forecast", "humidity", "wind", "monsoon", "climate", "storm", "drought", "sunny",
		"मौसम", "बारिश", "वर्षा", "तापमान", "मानसून", "हवा", "धूप", "आंधी",
		"ಹವಾಮಾನ", "ಮಳೆ", "ತಾಪಮಾನ", "ಗಾಳಿ", "ಮುಂಗಾರು", "ಬಿಸಿಲು",
	}},
	{CategoryCrop, []string{
		"crop", "plant", "sow", "seed", "harvest", "grow", "cultivat", "soil", "fertili", "irrigat", "yield", "farming",
		"फसल", "बीज", "बुवाई", "खेती", "मिट्टी", "उर्वरक", "खाद", "सिंचाई", "कटाई", "उपज",
		"ಬೆಳೆ", "ಬೀಜ", "ಬಿತ್ತನೆ", "ಕೃಷಿ", "ಮಣ್ಣು", "ಗೊಬ್ಬರ", "ನೀರಾವರಿ", "ಕೊಯ್ಲು", "ಇಳುವರಿ",
	}},
	{CategoryMarket, []string{
		"market", "price", "sell", "mandi", "cost", "buy", "profit", "msp",
		"बाजार", "बाज़ार", "मंडी", "कीमत", "दाम", "बेच",
		"ಮಾರುಕಟ್ಟೆ", "ಬೆಲೆ", "ಮಾರಾಟ", "ಮಂಡಿ",
	}},
	{CategoryPest, []string{
		"pest", "insect", "disease", "bug", "worm", "fung", "aphid", "locust", "weed", "blight", "spray",
		"कीट", "कीड़", "रोग", "बीमारी", "छिड़काव", "दवा",
		"ಕೀಟ", "ರೋಗ", "ಹುಳು", "ಕ್ರಿಮಿ", "ಸಿಂಪಡಣೆ",
	}},
}

// Classify returns the category of text. Matching is case-insensitive
// substring search; text that matches nothing is CategoryGeneral.
func Classify(text string) Category {
	lower := " " + strings.ToLower(text)
	for _, set := range vocabulary {
		for _, kw := range set.keywords {
			if strings.Contains(lower, kw) {
				return set.category
			}
		}
	}
	return CategoryGeneral
}
