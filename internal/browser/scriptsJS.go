package browser

// JS script to highlight clicked elements
const HighlightClickScript = `function() { this.style.outline = "3px solid #00FF00" }`

// JS script to highlight filled elements
const HighlightTypeScript = `function() { this.style.outline = "3px solid blue" }`

const HighlightReadScript = `function() { this.style.outline = "3px dashed orange" }`

const ForceClickScript = `function() {
	this.click();
	this.dispatchEvent(new MouseEvent('click', {bubbles: true}));
}`

const ScrollDownScript = `() => { window.scrollBy(0, window.innerHeight * 0.7); return true; }`

const ScrollUpScript = `() => { window.scrollBy(0, -window.innerHeight * 0.7); return true; }`
