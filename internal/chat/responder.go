package chat

import (
	"github.com/ashureev/smartkissan/internal/domain"
)

// Greeting seeds an empty transcript.
const Greeting = "Hello! I am your farming assistant. How can I help you today?"

// ReplyTable holds canned replies per language and category.
type ReplyTable map[domain.Language]map[Category]string

// NoLocationTable holds the weather reply used when the user's location is unknown.
type NoLocationTable map[domain.Language]string

// Responder produces replies without any network access.
type Responder struct {
	replies    ReplyTable
	noLocation NoLocationTable
}

// NewResponder builds a responder over custom tables.
func NewResponder(replies ReplyTable, noLocation NoLocationTable) *Responder {
	return &Responder{replies: replies, noLocation: noLocation}
}

// DefaultResponder returns the responder with the built-in en/hi/kn tables.
func DefaultResponder() *Responder {
	return NewResponder(defaultReplies, defaultNoLocation)
}

// Reply picks the canned reply for a category in lang. A language without an
// entry falls back to English.
func (r *Responder) Reply(cat Category, lang domain.Language, hasLocation bool) string {
	if cat == CategoryWeather && !hasLocation {
		if text, ok := r.noLocation[lang]; ok {
			return text
		}
		return r.noLocation[domain.LangEnglish]
	}

	if byCat, ok := r.replies[lang]; ok {
		if text, ok := byCat[cat]; ok {
			return text
		}
	}
	if text, ok := r.replies[domain.LangEnglish][cat]; ok {
		return text
	}
	return r.replies[domain.LangEnglish][CategoryGeneral]
}

var defaultNoLocation = NoLocationTable{
	domain.LangEnglish: "I need your location to give you a local weather update. Please allow location access or set a default location in Settings.",
	domain.LangHindi:   "स्थानीय मौसम की जानकारी देने के लिए मुझे आपका स्थान चाहिए। कृपया लोकेशन की अनुमति दें या सेटिंग्स में अपना डिफ़ॉल्ट स्थान चुनें।",
	domain.LangKannada: "ಸ್ಥಳೀಯ ಹವಾಮಾನ ಮಾಹಿತಿ ನೀಡಲು ನನಗೆ ನಿಮ್ಮ ಸ್ಥಳ ಬೇಕು. ದಯವಿಟ್ಟು ಸ್ಥಳ ಅನುಮತಿ ನೀಡಿ ಅಥವಾ ಸೆಟ್ಟಿಂಗ್ಸ್‌ನಲ್ಲಿ ಡೀಫಾಲ್ಟ್ ಸ್ಥಳವನ್ನು ಆಯ್ಕೆಮಾಡಿ.",
}

var defaultReplies = ReplyTable{
	domain.LangEnglish: {
		CategoryWeather: "The latest forecast for your area shows partly cloudy skies around 28°C, with light rain likely mid-week. Plan irrigation and spraying around the rain.",
		CategoryCrop:    "For the current season, wheat, mustard and chickpea do well in the loamy soils of your region. Test your soil before sowing and use certified seed.",
		CategoryMarket:  "Wheat is holding steady near ₹2,275 per quintal in nearby mandis. Compare rates at two or three mandis before you sell.",
		CategoryPest:    "Inspect your field twice a week, remove affected leaves and start with neem-based sprays. If the attack spreads, contact your Krishi Vigyan Kendra before using chemical pesticides.",
		CategoryGeneral: "I can help with weather, crop planning, market prices and pest control. What would you like to know about your farm today?",
	},
	domain.LangHindi: {
		CategoryWeather: "आपके क्षेत्र के ताज़ा पूर्वानुमान के अनुसार आसमान आंशिक रूप से बादलों से घिरा रहेगा और तापमान लगभग 28°C रहेगा। सप्ताह के बीच हल्की बारिश की संभावना है, इसलिए सिंचाई और छिड़काव उसी हिसाब से करें।",
		CategoryCrop:    "इस मौसम में आपके क्षेत्र की दोमट मिट्टी में गेहूं, सरसों और चना अच्छी उपज देते हैं। बुवाई से पहले मिट्टी की जांच कराएं और प्रमाणित बीज का उपयोग करें।",
		CategoryMarket:  "नज़दीकी मंडियों में गेहूं का भाव लगभग ₹2,275 प्रति क्विंटल पर स्थिर है। बेचने से पहले दो-तीन मंडियों के भाव ज़रूर मिलाएं।",
		CategoryPest:    "सप्ताह में दो बार खेत की जांच करें, प्रभावित पत्तियां हटा दें और पहले नीम आधारित छिड़काव करें। प्रकोप बढ़ने पर रासायनिक दवा से पहले कृषि विज्ञान केंद्र से सलाह लें।",
		CategoryGeneral: "मैं मौसम, फसल योजना, मंडी भाव और कीट नियंत्रण में आपकी मदद कर सकता हूं। आज आप अपनी खेती के बारे में क्या जानना चाहेंगे?",
	},
	domain.LangKannada: {
		CategoryWeather: "ನಿಮ್ಮ ಪ್ರದೇಶದ ಇತ್ತೀಚಿನ ಮುನ್ಸೂಚನೆಯ ಪ್ರಕಾರ ಆಕಾಶ ಭಾಗಶಃ ಮೋಡ ಕವಿದಿರುತ್ತದೆ ಮತ್ತು ತಾಪಮಾನ ಸುಮಾರು 28°C ಇರುತ್ತದೆ. ವಾರದ ಮಧ್ಯದಲ್ಲಿ ಹಗುರ ಮಳೆಯ ಸಾಧ್ಯತೆ ಇದೆ, ನೀರಾವರಿ ಮತ್ತು ಸಿಂಪಡಣೆಯನ್ನು ಅದಕ್ಕೆ ತಕ್ಕಂತೆ ಯೋಜಿಸಿ.",
		CategoryCrop:    "ಈ ಋತುವಿನಲ್ಲಿ ನಿಮ್ಮ ಪ್ರದೇಶದ ಮಣ್ಣಿಗೆ ರಾಗಿ, ಜೋಳ ಮತ್ತು ತೊಗರಿ ಉತ್ತಮ ಇಳುವರಿ ನೀಡುತ್ತವೆ. ಬಿತ್ತನೆಗೆ ಮೊದಲು ಮಣ್ಣು ಪರೀಕ್ಷೆ ಮಾಡಿಸಿ ಮತ್ತು ಪ್ರಮಾಣಿತ ಬೀಜ ಬಳಸಿ.",
		CategoryMarket:  "ಹತ್ತಿರದ ಮಾರುಕಟ್ಟೆಗಳಲ್ಲಿ ಗೋಧಿಯ ಬೆಲೆ ಕ್ವಿಂಟಾಲ್‌ಗೆ ಸುಮಾರು ₹2,275 ರಲ್ಲಿ ಸ್ಥಿರವಾಗಿದೆ. ಮಾರಾಟ ಮಾಡುವ ಮೊದಲು ಎರಡು ಮೂರು ಮಂಡಿಗಳ ದರ ಹೋಲಿಸಿ.",
		CategoryPest:    "ವಾರಕ್ಕೆ ಎರಡು ಬಾರಿ ಹೊಲವನ್ನು ಪರಿಶೀಲಿಸಿ, ಬಾಧಿತ ಎಲೆಗಳನ್ನು ತೆಗೆದುಹಾಕಿ ಮತ್ತು ಮೊದಲು ಬೇವು ಆಧಾರಿತ ಸಿಂಪಡಣೆ ಬಳಸಿ. ಹಾವಳಿ ಹೆಚ್ಚಾದರೆ ಕೃಷಿ ವಿಜ್ಞಾನ ಕೇಂದ್ರವನ್ನು ಸಂಪರ್ಕಿಸಿ.",
		CategoryGeneral: "ಹವಾಮಾನ, ಬೆಳೆ ಯೋಜನೆ, ಮಾರುಕಟ್ಟೆ ಬೆಲೆ ಮತ್ತು ಕೀಟ ನಿಯಂತ್ರಣದಲ್ಲಿ ನಾನು ನಿಮಗೆ ಸಹಾಯ ಮಾಡಬಲ್ಲೆ. ಇಂದು ನಿಮ್ಮ ಕೃಷಿಯ ಬಗ್ಗೆ ಏನು ತಿಳಿಯಲು ಬಯಸುತ್ತೀರಿ?",
	},
}
