package inference

// Label is one entry of the class table.
type Label struct {
	Name string `json:"name"`
	Icon string `json:"icon"`
}

func (l Label) String() string {
	return l.Name + " " + l.Icon
}

// Labels is indexed by the argmax of the model output.
var Labels = [10]Label{
	{"T-shirt/top", "👕"},
	{"Trouser", "👖"},
	{"Pullover", "🧥"},
	{"Dress", "👗"},
	{"Coat", "🧥"},
	{"Sandal", "👡"},
	{"Shirt", "👔"},
	{"Sneaker", "👟"},
	{"Bag", "👜"},
	{"Ankle boot", "🥾"},
}
