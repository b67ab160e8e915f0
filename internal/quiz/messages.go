package quiz

const (
	resultPrefix = "ผลการประเมินเบื้องต้น:\n"

	pmqaLabel       = "PMQA"
	tooShortMessage = "ผลงานต้องดำเนินการไม่น้อยกว่า 1 ปี"
	fallbackMessage = "ยังไม่พบประเภทที่ตรง โปรดปรึกษาเจ้าหน้าที่"
	guidanceMessage = `โปรดเลือกจากปุ่มที่กำหนด หรือพิมพ์ "เริ่ม" เพื่อเริ่มใหม่`
)

// resetKeywords are matched after trimming and lower-casing the text.
var resetKeywords = map[string]bool{
	"เริ่ม":     true,
	"เริ่มใหม่":  true,
	"reset":   true,
	"start":   true,
	"restart": true,
}
