package rewrite

import "strings"

// Runtime returns the interception script injected into every document.
// It inherits the host of an enclosing frame when one exists, redirects
// runtime-constructed references through the identifier table and turns
// anchor clicks into virtual navigation.
func Runtime(delayMillis int) string {
	return strings.Replace(runtimeJS, "__ZIPSITE_DELAY__", runtimeDelay(delayMillis), 1)
}

const runtimeJS = `(function () {
  "use strict";
  if (window.__zipsiteLayer) { return; }
  var boot = window.__zipsiteBoot || { pathToIdentifier: {}, defaultBasePath: "index.html" };
  var PREFIX = "/~zipsite/";
  var DELAY = __ZIPSITE_DELAY__;

  function inherit() {
    try {
      if (window.parent && window.parent !== window && window.parent.__zipsiteHost) {
        return window.parent.__zipsiteHost;
      }
    } catch (e) {}
    var path = boot.defaultBasePath;
    return {
      getPath: function () { return path; },
      setPath: function (p) { path = p; },
      lookup: function (key) {
        var id = boot.pathToIdentifier[key];
        return id ? { id: id, markup: false } : null;
      }
    };
  }

  var host = inherit();
  window.__zipsiteHost = host;

  function external(ref) {
    return ref.indexOf(PREFIX) === 0 || ref.indexOf("//") === 0 ||
      /^(data|blob):/i.test(ref) || /^[A-Za-z][A-Za-z0-9+.\-]*:\/\//.test(ref);
  }

  function normalize(base, ref) {
    var joined = ref;
    if (ref.charAt(0) === "/") {
      joined = ref.slice(1);
    } else {
      var i = base.lastIndexOf("/");
      if (i >= 0) { joined = base.slice(0, i) + "/" + ref; }
    }
    var out = [];
    joined.split("/").forEach(function (seg) {
      if (seg === "" || seg === ".") { return; }
      if (seg === "..") { out.pop(); return; }
      out.push(seg);
    });
    return out.join("/");
  }

  function split(ref) {
    var i = ref.search(/[?#]/);
    return i < 0 ? [ref, ""] : [ref.slice(0, i), ref.slice(i)];
  }

  function lookup(ref) {
    if (typeof ref !== "string" || ref === "" || external(ref)) { return null; }
    var parts = split(ref);
    if (parts[0] === "") { return null; }
    var key = normalize(host.getPath(), parts[0]);
    var hit = host.lookup(key) || (boot.pathToIdentifier[key] ? { id: boot.pathToIdentifier[key], markup: false } : null);
    if (!hit) { return null; }
    return { key: key, id: hit.id, markup: hit.markup, suffix: parts[1] };
  }

  function resolve(ref, allowMarkup) {
    try {
      var hit = lookup(ref);
      if (!hit || (hit.markup && !allowMarkup)) { return ref; }
      return hit.id + hit.suffix;
    } catch (e) {
      return ref;
    }
  }

  var origFetch = window.fetch;
  if (origFetch) {
    window.fetch = function (input, init) {
      if (typeof input === "string") { input = resolve(input, true); }
      return origFetch.call(this, input, init);
    };
  }

  var OrigURL = window.URL;
  function PatchedURL(url, base) {
    if (typeof url === "string" && (base === undefined || String(base).indexOf(location.origin + PREFIX) === 0)) {
      var resolved = resolve(url, true);
      if (resolved !== url) { return new OrigURL(resolved, location.origin); }
    }
    return base === undefined ? new OrigURL(url) : new OrigURL(url, base);
  }
  PatchedURL.prototype = OrigURL.prototype;
  Object.getOwnPropertyNames(OrigURL).forEach(function (name) {
    if (!(name in PatchedURL)) {
      try { PatchedURL[name] = OrigURL[name]; } catch (e) {}
    }
  });
  window.URL = PatchedURL;

  var origOpen = XMLHttpRequest.prototype.open;
  XMLHttpRequest.prototype.open = function (method, url) {
    var args = Array.prototype.slice.call(arguments);
    if (typeof url === "string") { args[1] = resolve(url, true); }
    return origOpen.apply(this, args);
  };

  [HTMLImageElement, HTMLMediaElement, HTMLSourceElement, HTMLTrackElement, HTMLScriptElement,
    HTMLIFrameElement, HTMLEmbedElement, HTMLInputElement].forEach(function (ctor) {
    if (!ctor) { return; }
    var desc = Object.getOwnPropertyDescriptor(ctor.prototype, "src");
    if (!desc || !desc.set) { return; }
    Object.defineProperty(ctor.prototype, "src", {
      configurable: true,
      enumerable: desc.enumerable,
      get: desc.get,
      set: function (v) { desc.set.call(this, resolve(String(v), true)); }
    });
  });

  var queue = [];
  var timer = null;

  function reconcile(el) {
    if (!el || el.nodeType !== 1) { return; }
    var src = el.getAttribute("src");
    if (src !== null) {
      var next = resolve(src, true);
      if (next !== src) { el.setAttribute("src", next); }
    }
    var href = el.getAttribute("href");
    if (href !== null) {
      var to = resolve(href, el.tagName !== "A" && el.tagName !== "AREA");
      if (to !== href) { el.setAttribute("href", to); }
    }
  }

  function drain() {
    timer = null;
    var items = queue;
    queue = [];
    items.forEach(function (el) {
      reconcile(el);
      if (el.querySelectorAll) {
        Array.prototype.forEach.call(el.querySelectorAll("[src],[href]"), reconcile);
      }
    });
  }

  function enqueue(el) {
    queue.push(el);
    if (timer === null) { timer = setTimeout(drain, DELAY); }
  }

  new MutationObserver(function (records) {
    records.forEach(function (r) {
      if (r.type === "attributes") { enqueue(r.target); }
      else { Array.prototype.forEach.call(r.addedNodes, function (n) { if (n.nodeType === 1) { enqueue(n); } }); }
    });
  }).observe(document.documentElement, { subtree: true, childList: true, attributes: true, attributeFilter: ["src", "href"] });

  document.addEventListener("click", function (e) {
    if (e.button !== 0 || e.defaultPrevented) { return; }
    var a = e.target && e.target.closest ? e.target.closest("a, area") : null;
    if (!a) { return; }
    var href = a.getAttribute("href");
    if (!href || /^(#|javascript:|mailto:|tel:)/i.test(href)) { return; }
    var hit;
    try { hit = lookup(href); } catch (err) { return; }
    if (!hit || !hit.markup) { return; }
    e.preventDefault();
    host.setPath(hit.key);
    location.href = hit.id + hit.suffix;
  }, true);

  window.__zipsiteLayer = { resolve: resolve, host: host };
})();
`
