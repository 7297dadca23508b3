package bot

import (
	"errors"
	"fmt"

	"github.com/FACorreiaa/ledger-bot/internal/domain/finance"
)

// User-facing texts. Nothing here may carry raw error bodies.
const (
	msgHelp = "👋 Изпрати транзакция във формат:\n" +
		finance.ExampleFormat + "\n\n" +
		"Разход се отбелязва с razhod или plateno в описанието, иначе транзакцията е приход.\n\n" +
		"Команди:\n" +
		"/settype – избор на вид за следващата транзакция\n" +
		"/edit – редакция на последните ти записи\n" +
		"/delete – изтриване на запис\n" +
		"/refreshtypes – презареждане на видовете"

	msgRateLimited      = "⏳ Твърде много заявки. Опитай отново след минута."
	msgRateLimitedToast = "Твърде много заявки"
	msgGenericFailure   = "❌ Възникна грешка. Опитай отново по-късно."
	msgUnknownCommand   = "❓ Непозната команда."

	msgTypesUnavailable = "❌ Не успях да заредя видовете. Транзакцията е запазена, опитай /settype."
	msgNoTypes          = "ℹ️ Няма налични видове."
	msgTypeKept         = "📌 Видът ще бъде приложен към следващата транзакция."
	msgTypesReloaded    = "🔄 Заредени са %d вида."

	msgSaved       = "✅ Отчетът е записан успешно."
	msgSaveFailed  = "❌ Грешка при записването на отчета. Опитай отново."
	msgAccountMiss = "❌ Не намерихме акаунт с име: %s. Записахме акаунта в полето 'Описание'."

	msgNoRecordsEdit   = "❌ Няма записи за редактиране."
	msgNoRecordsDelete = "❌ Няма записи за изтриване."
	msgRecordsHeader   = "Твоите записи:\n"
	msgPickEdit        = "Избери номер на запис за редактиране (например /edit 1)."
	msgPickDelete      = "Избери номер на запис за изтриване (например /delete 1)."
	msgInvalidIndex    = "❌ Невалиден номер на запис."
	msgRecordLine      = "%d. %s %s от %s\n"
	msgRecordMissing   = "%d. Неуспешно извличане на данни.\n"
	msgUnknownAccount  = "неизвестен акаунт"

	msgDeleted      = "✅ Записът беше изтрит успешно."
	msgDeleteFailed = "❌ Грешка при изтриването на записа."

	msgAskField          = "Какво искаш да промениш: описание, сума или акаунт?"
	msgAskFieldAgain     = "❌ Въведи една от опциите: описание, сума, акаунт."
	msgAskDescription    = "Въведи новото описание:"
	msgAskAmount         = "Въведи новата сума с валута (например 100 лв., 250 EUR, 50 GBP):"
	msgAskAccount        = "Въведи новия акаунт:"
	msgInvalidAmount     = "❌ Въведи валидна сума с валута. Пример: 100 лв., 250 EUR, 50 GBP."
	msgEmptyDescription  = "❌ Описанието не може да е празно."
	msgDescriptionEdited = "✅ Описанието е редактирано успешно."
	msgAmountEdited      = "✅ Сумата и валутата са актуализирани успешно."
	msgAccountEdited     = "✅ Акаунтът е актуализиран успешно."
	msgEditFailed        = "❌ Грешка при редакцията на записа."
	msgAccountNotFound   = "❌ Не намерихме акаунт с това име."
	msgAccountLookupFail = "❌ Грешка при търсенето на акаунт."
)

// rejectionText explains why a message is not a transaction.
func rejectionText(err error) string {
	reason := "Неразпознат формат."
	switch {
	case errors.Is(err, finance.ErrInputTooLong):
		reason = fmt.Sprintf("Съобщението е твърде дълго (най-много %d знака).", finance.MaxMessageLength)
	case errors.Is(err, finance.ErrInvalidAmount):
		reason = "Не разпознах сумата."
	case errors.Is(err, finance.ErrUnknownCurrency):
		reason = "Непозната валута. Поддържани: лв., EUR, GBP, USD."
	case errors.Is(err, finance.ErrMissingDescription):
		reason = "Липсва описание."
	}
	return "⚠️ " + reason + " Използвай формат като:\n" + finance.ExampleFormat
}
