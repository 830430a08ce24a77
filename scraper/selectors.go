package scraper

// Selectors locates every field on the listing and detail views. Values are
// CSS selectors understood by both goquery and the browser.
type Selectors struct {
	Title        string
	Features     string
	FeatureSpans string
	Price        string
	CrossOut     string
	Model        string
	Button       string

	DetailPanel  string
	PanelHeading string
	SlotTitle    string
	SlotSubtitle string
	Insurance    string
}

// DefaultSelectors returns the marketplace profile.
func DefaultSelectors() Selectors {
	return Selectors{
		Title:        `span[class*="Card_CardTitleMedium__korrS"]`,
		Features:     `div[class*="HStack_HStack__bHoaj Card_CardBubbles__zuOuw"]`,
		FeatureSpans: `span[class*="Text_Text__F4Wpv Card_CardBubble__zukT3"]`,
		Price:        `div[class*="Heading_Heading__PjLg8 Card_CardPrice__spWUR"]`,
		CrossOut:     `.Price_crossOut__QufS3`,
		Model:        `span[class*="ButtonSimilarInfo_ButtonSimilarInfoPrefix___Qou3"]`,
		Button:       `button[data-testid="Card.Book"]`,

		DetailPanel:  `div[class*="Island_IslandWrap__QuZPl"]`,
		PanelHeading: `h3`,
		SlotTitle:    `div[class*="SlotText_Title__gHEmU"]`,
		SlotSubtitle: `div[class*="SlotText_Subtitle__yHTPE"]`,
		Insurance:    `div[class*="BookFormInsuranceOptions_island__"]`,
	}
}

// Primary returns the selectors that must be visible before cards are read.
func (s Selectors) Primary() []string {
	return []string{s.Title, s.Features, s.Price}
}
