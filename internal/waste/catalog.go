// Package waste содержит каталог видов отходов и расчёт оценочного вознаграждения.
package waste

// Type описывает вид отходов внутри категории. Цена и баллы указаны за килограмм.
type Type struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	PricePerKg  int64  `json:"pricePerKg"`
	PointsPerKg int64  `json:"pointsPerKg"`
}

// Category описывает категорию отходов.
type Category struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Types []Type `json:"types"`
}

// Идентификаторы категорий и видов попадают в исторические заявки и не переиспользуются.
var catalog = []Category{
	{
		ID:    "anorganik",
		Label: "Anorganik (Daur Ulang)",
		Types: []Type{
			{ID: "plastik_botol", Label: "Botol Plastik (Bening/PET)", PricePerKg: 3000, PointsPerKg: 50},
			{ID: "plastik_campur", Label: "Plastik Campur (Ember/Gelas)", PricePerKg: 1500, PointsPerKg: 30},
			{ID: "kertas_kardus", Label: "Kardus & Karton", PricePerKg: 1500, PointsPerKg: 30},
			{ID: "kertas_hvs", Label: "Kertas Putih (Buku/HVS)", PricePerKg: 2500, PointsPerKg: 40},
			{ID: "kertas_koran", Label: "Koran / Kertas Buram", PricePerKg: 1000, PointsPerKg: 20},
			{ID: "logam_kaleng", Label: "Kaleng Aluminium (Minuman)", PricePerKg: 10000, PointsPerKg: 100},
			{ID: "logam_besi", Label: "Besi & Logam Lainnya", PricePerKg: 3000, PointsPerKg: 50},
			{ID: "kaca", Label: "Botol Kaca & Beling", PricePerKg: 500, PointsPerKg: 10},
		},
	},
	{
		ID:    "organik",
		Label: "Organik (Kompos)",
		Types: []Type{
			{ID: "sisa_makanan", Label: "Sisa Makanan (Basah)", PricePerKg: 100, PointsPerKg: 20},
			{ID: "sampah_kebun", Label: "Sampah Kebun (Daun/Ranting)", PricePerKg: 100, PointsPerKg: 20},
		},
	},
	{
		ID:    "b3",
		Label: "B3 & Lainnya",
		Types: []Type{
			{ID: "jelantah", Label: "Minyak Jelantah", PricePerKg: 5000, PointsPerKg: 80},
			{ID: "elektronik", Label: "Elektronik (E-Waste)", PricePerKg: 5000, PointsPerKg: 100},
			{ID: "baterai", Label: "Baterai Bekas", PricePerKg: 0, PointsPerKg: 100},
			{ID: "lampu", Label: "Lampu Neon/Bohlam", PricePerKg: 0, PointsPerKg: 100},
			{ID: "tekstil", Label: "Pakaian / Tekstil Bekas", PricePerKg: 500, PointsPerKg: 20},
		},
	},
}

var byCategory = func() map[string]map[string]Type {
	idx := make(map[string]map[string]Type, len(catalog))
	for _, c := range catalog {
		types := make(map[string]Type, len(c.Types))
		for _, t := range c.Types {
			types[t.ID] = t
		}
		idx[c.ID] = types
	}
	return idx
}()

// Catalog возвращает копию каталога в порядке отображения.
func Catalog() []Category {
	res := make([]Category, 0, len(catalog))
	for _, c := range catalog {
		c.Types = append([]Type(nil), c.Types...)
		res = append(res, c)
	}
	return res
}

// FlatType описывает вид отходов вместе с данными его категории.
type FlatType struct {
	Type
	CategoryID    string `json:"categoryId"`
	CategoryLabel string `json:"categoryLabel"`
}

// AllTypes возвращает все виды отходов одним списком.
func AllTypes() []FlatType {
	var res []FlatType
	for _, c := range catalog {
		for _, t := range c.Types {
			res = append(res, FlatType{Type: t, CategoryID: c.ID, CategoryLabel: c.Label})
		}
	}
	return res
}

// Lookup находит вид отходов по идентификаторам категории и вида.
func Lookup(categoryID, typeID string) (Type, bool) {
	types, ok := byCategory[categoryID]
	if !ok {
		return Type{}, false
	}
	t, ok := types[typeID]
	return t, ok
}
