package constants

// MergeKeywords signal that all uploaded images should be combined into one
// logical table instead of one table per image. Matched as substrings
// against the lowercased user note.
var MergeKeywords = []string{
	"merge",
	"combine",
	"one table",
	"one sheet",
	"دمج",
	"ادمج",
	"اجمع",
	"جدول واحد",
}

// Header synonym lists for the quantity×price≈total consistency check.
// Matching is case- and diacritic-naive substring against header text.
var (
	QuantityHeaders = []string{"quantity", "qty", "count", "الكمية", "كمية", "العدد", "عدد"}
	PriceHeaders    = []string{"unit price", "price", "سعر الوحدة", "السعر", "سعر"}
	TotalHeaders    = []string{"total", "amount", "الإجمالي", "الاجمالي", "اجمالي", "المجموع", "مجموع"}
)

// ConsistencyTolerance is the absolute deviation allowed between
// quantity*price and the stated total before a row is flagged.
const ConsistencyTolerance = 1.0
