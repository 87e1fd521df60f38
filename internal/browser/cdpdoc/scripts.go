// internal/browser/cdpdoc/scripts.go
package cdpdoc

// Function declarations run with the element as `this`. %s verbs take JSON literals.
const (
	findAllScript = `(function (xp) {
  var r = document.evaluate(xp, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
  var out = [];
  for (var i = 0; i < r.snapshotLength; i++) {
    var n = r.snapshotItem(i);
    if (n.nodeType === Node.ELEMENT_NODE) {
      out.push(n);
    }
  }
  return out;
})(%s)`

	lengthFn = `function () { return this.length; }`
	indexFn  = `function () { return this[%d]; }`

	readValueFn = `function () { return this.value == null ? "" : String(this.value); }`

	// The prototype setter bypasses value trackers installed by page frameworks, so their
	// listeners see the change as user input.
	writeValueFn = `function () {
  var v = %s;
  var proto = Object.getPrototypeOf(this);
  var desc = proto && Object.getOwnPropertyDescriptor(proto, "value");
  if (desc && desc.set) {
    desc.set.call(this, v);
  } else {
    this.value = v;
  }
  return true;
}`

	dispatchFn = `function () {
  var type = %s, key = %s, ev;
  switch (type) {
  case "keydown":
  case "keypress":
  case "keyup":
    ev = new KeyboardEvent(type, { key: key, bubbles: true, cancelable: true });
    break;
  case "input":
    ev = new InputEvent("input", { bubbles: true });
    break;
  case "focus":
  case "blur":
    ev = new FocusEvent(type, { bubbles: false });
    break;
  case "click":
    ev = new MouseEvent("click", { bubbles: true, cancelable: true, view: window });
    break;
  default:
    ev = new Event(type, { bubbles: true });
  }
  this.dispatchEvent(ev);
  return true;
}`

	visibleFn = `function () {
  if (!this.isConnected) { return false; }
  if (this.hidden || (this.type && String(this.type).toLowerCase() === "hidden")) { return false; }
  for (var el = this; el && el.nodeType === Node.ELEMENT_NODE; el = el.parentElement) {
    var s = window.getComputedStyle(el);
    if (s.display === "none" || s.visibility === "hidden") { return false; }
  }
  return true;
}`

	enabledFn = `function () {
  if (this.disabled) { return false; }
  return !(this.closest && this.closest("fieldset[disabled]"));
}`

	connectedFn = `function () { return this.isConnected; }`

	attrFn = `function () { var v = this.getAttribute(%s); return v == null ? "" : v; }`

	textFn = `function () { return this.textContent || ""; }`

	labelFn = `function () {
  var parts = [];
  if (this.labels) {
    for (var i = 0; i < this.labels.length; i++) { parts.push(this.labels[i].textContent); }
  }
  if (parts.length === 0 && this.closest) {
    var l = this.closest("label");
    if (l) { parts.push(l.textContent); }
  }
  if (parts.length === 0 && this.getAttribute("aria-label")) {
    parts.push(this.getAttribute("aria-label"));
  }
  return parts.join(" ").trim();
}`

	clickFn = `function () { this.click(); return true; }`
	focusFn = `function () { this.focus(); return true; }`
	blurFn  = `function () { this.blur(); return true; }`

	describeFn = `function () {
  var d = this.tagName ? this.tagName.toLowerCase() : "node";
  if (this.id) { d += "#" + this.id; }
  if (this.name) { d += "[name=" + this.name + "]"; }
  return d;
}`
)
