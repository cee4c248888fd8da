package browser

// Page scripts evaluated with playwright's Page.Evaluate. Each is a function
// expression taking one argument.

// scanScript collects raw anchors and embedded documents. Attribute values
// are returned as written; resolution happens in Go against baseURI.
const scanScript = `(limits) => {
  const clean = (v) => String(v || "").replace(/\s+/g, " ").trim();
  const elements = [];
  const anchors = Array.from(document.querySelectorAll("a[href]")).slice(0, limits.anchors);
  for (const a of anchors) {
    elements.push({
      kind: "a",
      ref: a.getAttribute("href") || "",
      text: clean(a.textContent),
      title: clean(a.getAttribute("title")),
      type: a.getAttribute("type") || ""
    });
  }
  const embeds = Array.from(document.querySelectorAll("iframe[src], embed[src], object[data]")).slice(0, limits.embeds);
  for (const el of embeds) {
    const kind = el.tagName.toLowerCase();
    elements.push({
      kind,
      ref: (kind === "object" ? el.getAttribute("data") : el.getAttribute("src")) || "",
      title: clean(el.getAttribute("title")),
      name: clean(el.getAttribute("name")),
      type: el.getAttribute("type") || ""
    });
  }
  return { url: document.baseURI || location.href, title: document.title || "", elements };
}`

// toastScript shows a transient message in the bottom corner of the page.
const toastScript = `(message) => {
  const id = "__darkpdf_toast__";
  const old = document.getElementById(id);
  if (old) old.remove();
  const box = document.createElement("div");
  box.id = id;
  box.textContent = message;
  Object.assign(box.style, {
    position: "fixed", right: "16px", bottom: "16px", zIndex: "2147483647",
    maxWidth: "360px", padding: "10px 14px", borderRadius: "8px",
    background: "#1a1a1a", color: "#f1f1f1", font: "14px system-ui, sans-serif",
    boxShadow: "0 8px 24px rgba(0,0,0,.4)"
  });
  (document.body || document.documentElement).appendChild(box);
  setTimeout(() => box.remove(), 5000);
  return true;
}`

// badgeScript prefixes the document title with the badge text; an empty
// badge restores the original title.
const badgeScript = `(badge) => {
  const key = "__darkpdfTitle";
  if (window[key] === undefined) window[key] = document.title;
  document.title = badge ? "[" + badge + "] " + window[key] : window[key];
  if (!badge) delete window[key];
  return true;
}`

// pickerScript shows a modal list of candidates and resolves with the chosen
// URL, or null when dismissed. Digits 1-9 pick directly; Escape cancels.
const pickerScript = `(candidates) => new Promise((resolve) => {
  const rootId = "__darkpdf_picker__";
  const existing = document.getElementById(rootId);
  if (existing) existing.remove();

  const root = document.createElement("div");
  root.id = rootId;
  Object.assign(root.style, {
    position: "fixed", inset: "0", zIndex: "2147483647", display: "flex",
    alignItems: "center", justifyContent: "center", background: "rgba(0,0,0,.62)",
    font: "14px system-ui, sans-serif"
  });
  const panel = document.createElement("div");
  Object.assign(panel.style, {
    width: "min(720px, calc(100vw - 32px))", maxHeight: "min(640px, calc(100vh - 32px))",
    overflow: "auto", background: "#111", color: "#f1f1f1", borderRadius: "12px", padding: "16px"
  });
  const heading = document.createElement("h2");
  heading.textContent = "Choose a PDF to open";
  heading.style.margin = "0 0 12px";
  panel.appendChild(heading);

  const done = (value) => {
    document.removeEventListener("keydown", onKey, true);
    root.remove();
    resolve(value || null);
  };
  candidates.forEach((c, i) => {
    const row = document.createElement("button");
    row.type = "button";
    Object.assign(row.style, {
      display: "block", width: "100%", textAlign: "left", margin: "0 0 8px", padding: "10px 12px",
      background: "#1a1a1a", color: "inherit", border: "1px solid #555", borderRadius: "10px", cursor: "pointer"
    });
    row.textContent = (i + 1) + ". " + (c.label || c.url) + "  (" + (c.source || "link") + ")";
    row.title = c.url;
    row.addEventListener("click", () => done(c.url));
    panel.appendChild(row);
  });
  const cancel = document.createElement("button");
  cancel.type = "button";
  cancel.textContent = "Cancel";
  cancel.addEventListener("click", () => done(null));
  panel.appendChild(cancel);

  const onKey = (e) => {
    if (e.key === "Escape") { e.preventDefault(); done(null); return; }
    const n = Number.parseInt(e.key, 10);
    if (n >= 1 && n <= 9 && candidates[n - 1]) { e.preventDefault(); done(candidates[n - 1].url); }
  };
  root.addEventListener("click", (e) => { if (e.target === root) done(null); });
  document.addEventListener("keydown", onKey, true);
  root.appendChild(panel);
  document.documentElement.appendChild(root);
})`
