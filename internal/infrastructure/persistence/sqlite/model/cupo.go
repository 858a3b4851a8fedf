package model

type CupoProvincia struct {
	Provincia string `gorm:"column:provincia;type:text;primaryKey"`
	Tamano    int64  `gorm:"column:tamano;not null;default:0"`
	Activos   int64  `gorm:"column:activos;not null;default:0"`
	Version   int64  `gorm:"column:version;not null;default:1"`
}

func (CupoProvincia) TableName() string {
	return "cupo_provincias"
}
