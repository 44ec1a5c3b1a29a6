package advice

import "github.com/TobiSchelling/moodtrack/internal/prompt"

// Template types tag advice by the mood band it was written for.
const (
	TemplateSupportive = "supportive_advice"
	TemplateNeutral    = "neutral_boost"
	TemplatePositive   = "positive_reinforcement"
)

// TemplateType returns the template for a mood score: supportive up to 2,
// neutral at 3, positive from 4.
func TemplateType(mood int) string {
	switch {
	case mood <= 2:
		return TemplateSupportive
	case mood == 3:
		return TemplateNeutral
	default:
		return TemplatePositive
	}
}

func validTemplate(t string) bool {
	switch t {
	case TemplateSupportive, TemplateNeutral, TemplatePositive:
		return true
	}
	return false
}

var fallbackMessages = map[string]map[string]string{
	"en": {
		TemplateSupportive: "It sounds like you are going through a hard time. Remember that this feeling will pass. Try resting for a bit or doing one small thing you enjoy.",
		TemplateNeutral:    "An ordinary mood is a fine place to be. Sometimes a small change makes a big difference. Try a short walk or put on some music you love.",
		TemplatePositive:   "It is great that you are feeling good! Keep this positive momentum going. Is there one small thing you can do to hold on to this feeling?",
	},
	"vi": {
		TemplateSupportive: "Có vẻ như bạn đang trải qua thời gian khó khăn. Hãy nhớ rằng cảm xúc này sẽ qua đi. Thử nghỉ ngơi một chút hoặc làm điều gì đó nhỏ nhặt mà bạn yêu thích.",
		TemplateNeutral:    "Tâm trạng bình thường cũng là điều tốt. Đôi khi một thay đổi nhỏ có thể tạo ra sự khác biệt lớn. Hãy thử đi dạo hoặc nghe nhạc yêu thích.",
		TemplatePositive:   "Thật tuyệt khi bạn cảm thấy tốt! Hãy duy trì động lực tích cực này. Có điều gì nhỏ bạn có thể làm để giữ vững cảm giác này không?",
	},
	"ja": {
		TemplateSupportive: "今はつらい時期を過ごしているようですね。この気持ちはきっと過ぎ去ります。少し休むか、好きな小さなことをしてみてください。",
		TemplateNeutral:    "普通の気分も良いことです。小さな変化が大きな違いを生むこともあります。散歩をしたり、好きな音楽を聴いたりしてみましょう。",
		TemplatePositive:   "気分が良いのは素晴らしいことです！この前向きな勢いを保ちましょう。この気持ちを保つためにできる小さなことはありますか？",
	},
}

// Fallback returns the canned advice for a mood score and locale.
func Fallback(mood int, locale string) (text, templateType string) {
	templateType = TemplateType(mood)
	msgs, ok := fallbackMessages[prompt.NormalizeLocale(locale)]
	if !ok {
		msgs = fallbackMessages[prompt.DefaultLocale]
	}
	return msgs[templateType], templateType
}
