package entities

import "time"

// Origin tags which record set a book lives in.
type Origin string

const (
	OriginPrimary Origin = "primary" // libros: file bytes kept by this service
	OriginLinked  Origin = "linked"  // libros1: file lives at an external URI
)

// BookID is the shared identifier allocator. Both record sets take their
// primary key from here, so a given id exists in at most one of them.
type BookID struct {
	ID int64 `gorm:"primaryKey;autoIncrement"`
}

func (BookID) TableName() string { return "libro_ids" }

// Book is a primary record. Exactly one of FilePath (disk mode) or
// FileData (blob mode) holds the payload.
type Book struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string    `gorm:"column:nombre;size:512;not null" json:"nombre"`
	Category  string    `gorm:"column:categoria;index;size:256;not null" json:"categoria"`
	Image     []byte    `gorm:"column:imagen" json:"-"`
	ImageType string    `gorm:"column:tipo_imagen;size:64" json:"tipo_imagen,omitempty"`
	FilePath  string    `gorm:"column:archivo;size:1024" json:"-"`
	FileData  []byte    `gorm:"column:archivo_datos" json:"-"`
	FileType  string    `gorm:"column:tipo_archivo;size:128" json:"tipo_archivo"`
	FileName  string    `gorm:"column:nombre_archivo;size:512" json:"nombre_archivo,omitempty"`
	FileSize  int64     `gorm:"column:tamano" json:"tamano"`
	CreatedAt time.Time `json:"created_at"`
}

func (Book) TableName() string { return "libros" }

// LinkedBook is a linked record; URI stands in for the file payload.
type LinkedBook struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name      string    `gorm:"column:nombre;size:512;not null" json:"nombre"`
	Category  string    `gorm:"column:categoria;index;size:256;not null" json:"categoria"`
	Image     []byte    `gorm:"column:imagen" json:"-"`
	ImageType string    `gorm:"column:tipo_imagen;size:64" json:"tipo_imagen,omitempty"`
	URI       string    `gorm:"column:archivo;size:2048;not null" json:"archivo"`
	CreatedAt time.Time `json:"created_at"`
}

func (LinkedBook) TableName() string { return "libros1" }
