package conversation

const (
	genderMale   = "Мужской"
	genderFemale = "Женский"

	// CycleTrackingGender is the stored gender that gets the cycle-day question.
	CycleTrackingGender = "женский"

	defaultName = "Пользователь"
)

var (
	emotionLabels  = []string{"никаких ярких эмоций", "счастье", "стресс", "злость", "скука", "тревога", "грусть", "усталость"}
	locationLabels = []string{"дома", "работа", "кафе"}
	companyLabels  = []string{"один/одна", "с кем-то"}
	phoneLabels    = []string{"с телефоном", "без телефона"}
	bingeLabels    = []string{"Да", "Нет", "Лёгкое", "Сильное"}
)

const (
	textIntro = "Привет! 👋\n\n" +
		"Я — твой личный бот-дневник питания и эмоций. Помогаю отслеживать, что и как ты ешь, " +
		"а также как это влияет на твоё настроение и общее состояние.\n\n" +
		"Когда будешь готов(а), введи команду /meal, чтобы начать запись приёма пищи.\n\n" +
		"Давай начнём! Как тебя зовут?"
	textWelcomeBack     = "Привет, %s! Я бот-дневник питания и эмоций.\n\nКоманда: /meal — начать приём пищи"
	textIntroduceFirst  = "Давай сначала познакомимся! Как тебя зовут?"
	textAskName         = "Как тебя зовут?"
	textAskGender       = "Выбери пол:"
	textAskHunger       = "%s, от 1 до 10, какой был голод перед едой?"
	textAskSatiety      = "Какой уровень сытости после?"
	textAskEmotion      = "Какую эмоцию ты испытывал(а)?"
	textAskSleep        = "Сколько часов ты спал(а)?"
	textAskLocation     = "Где ты ел(а)?"
	textAskCompany      = "Ты ел(а) один/одна или с кем-то?"
	textAskPhone        = "Ты ел(а) с телефоном или без?"
	textAskCycleDay     = "Какой сегодня день цикла?"
	textAskBinge        = "Было ли переедание/срыв?"
	textSaved           = "Спасибо, %s! Всё записано 🙌"
	textNoSession       = "Чтобы записать приём пищи, введи /meal."
	textCancelled       = "Запись отменена. Начать заново: /meal"
	textTemporaryFail   = "Не получилось сохранить ответ, попробуй ещё раз чуть позже."
	textHistoryEmpty    = "Записей пока нет. Начать: /meal"
	textHistoryHeader   = "Последние записи:"
	UnknownCommandText  = "Не знаю такой команды. Чтобы записать приём пищи, введи /meal."
	BusyText            = "Я ещё обрабатываю предыдущие сообщения. Подожди немного и отправь ответ ещё раз."
	InternalFailureText = "Что-то пошло не так. Попробуй ещё раз."

	errNumberRange   = "Нужно целое число от %d до %d."
	errSleepHours    = "Укажи количество часов числом от 0 до 24, например 7 или 6.5."
	errChooseOption  = "Выбери один из вариантов на клавиатуре."
	errEmptyName     = "Имя не может быть пустым."
	errNameTooLong   = "Слишком длинное имя, не больше %d символов."
	errEmotionFormat = "Опиши эмоцию коротко, не больше %d символов."
)
