package domain

// Period — одна строка расписания: урок с номером, предметом и кабинетом.
type Period struct {
	Number  int    `json:"period"`
	Subject string `json:"subject"`
	Room    string `json:"room"`
}

// Snapshot — нормализованное расписание одного дня для одного класса.
// После получения из источника не изменяется, только пересобирается заново.
type Snapshot struct {
	Date    string // YYYYMMDD
	Periods []Period
}

// Empty сообщает, что на день нет ни одного урока (выходной, каникулы).
func (s Snapshot) Empty() bool {
	return len(s.Periods) == 0
}

// LedgerRecord — запись журнала публикаций для одной даты.
// JSON-имена полей совпадают с форматом state/posted.json,
// чтобы журнал, записанный прежним процессом, оставался читаемым.
type LedgerRecord struct {
	PostID      string `json:"post_id"`
	Fingerprint string `json:"hash"`
}

// SchoolCodes — идентификаторы школы в NEIS.
type SchoolCodes struct {
	RegionCode string `json:"region_code"` // ATPT_OFCDC_SC_CODE
	RegionName string `json:"region_name"`
	SchoolCode string `json:"school_code"` // SD_SCHUL_CODE
	SchoolName string `json:"school_name"`
	Kind       string `json:"kind"`
}

// ClassInfo — один класс из справочника classInfo.
type ClassInfo struct {
	Year  string
	Grade string
	Class string
}

// TimetableQuery — параметры запроса расписания на день.
type TimetableQuery struct {
	SchoolLevel string // els | mis | his
	RegionCode  string
	SchoolCode  string
	Date        string // YYYYMMDD
	Grade       int
	Class       string
	Year        string // AY, опционально
	Semester    string // SEM, опционально
}
