package model

// Category is the resource class a request is sorted into. Each has a fixed strategy.
type Category string

// Resource categories. The first four double as intermediary partition names.
const (
	CategoryStatic  Category = "static"
	CategoryImages  Category = "images"
	CategoryTiles   Category = "tiles"
	CategoryDynamic Category = "dynamic"
	CategoryAPI     Category = "api"
	// CategoryCritical covers one-time assets such as fonts.
	CategoryCritical Category = "critical"
)

// Partitions lists the categories that own a partition, in a stable order.
// API responses share the dynamic partition and critical assets the static one.
func Partitions() []Category {
	return []Category{CategoryStatic, CategoryDynamic, CategoryImages, CategoryTiles}
}

// Partition returns the partition that stores responses of c.
func (c Category) Partition() Category {
	switch c {
	case CategoryAPI:
		return CategoryDynamic
	case CategoryCritical:
		return CategoryStatic
	default:
		return c
	}
}
